// Package harness defines the test cases that drive the sandboxing tool
// and the machinery that runs them.
//
// Every test case has two behaviors. Exercise runs under the sandbox and
// performs file operations in the working directory. Verify runs later, in
// a separate unsandboxed process, and inspects the newest sandbox instance.
// Nothing is passed between them: verify recomputes content keys and
// expected contents from the same constants exercise used.
//
// # Built-in Cases
//
//   - no_syscalls: touches nothing; the file-map must be empty
//   - save_empty_file: creates a zero-byte file
//   - save_file_with_content, write_same_file_twice, read_own_write
//   - read_existing_file: read-only open of an unproxied file
//   - unlink_saved_file, rename_saved_file
//
// # Scenario Format
//
// Further cases can be written as YAML:
//
//	name: save_hello
//	description: Saving a small file records one entry
//	exercise:
//	  - create: hello.txt
//	    content: "hello\n"
//	verify:
//	  - manifest: [hello.txt]
//	  - artifact: hello.txt
//	    content: "hello\n"
//
// Exercise steps are create (optional content), append (content), remove,
// read (optional expect) and rename (to). Verify expectations are
// manifest (ordered: true for exact order), manifest_raw, artifact
// (content) and absent. manifest_raw may refer to ${instance},
// ${key:NAME} and ${artifact:NAME}.
//
// Each expectation is reported as one assertion at its line in the YAML
// file. Scenario files are checked against an embedded CUE schema before
// they are decoded.
//
// # Usage
//
//	reg := harness.NewRegistry()
//	if err := harness.RegisterBuiltins(reg); err != nil {
//	    return err
//	}
//	runner := harness.NewRunner(reg, locator, reporter, logger)
//	err := runner.Run(ctx, harness.PhaseVerify, "save_empty_file")
package harness
