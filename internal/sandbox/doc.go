// Package sandbox locates FSSB sandbox instances on disk.
//
// The sandboxing tool creates one staging directory per run under a scratch
// root, named with a fixed prefix and an increasing ordinal:
//
//	/tmp/fssb-1
//	/tmp/fssb-2
//	/tmp/fssb-7   <- current instance (greatest ordinal)
//
// Inside an instance, every redirected file is stored under its content key
// (the hex MD5 of the name the sandboxed program passed to open(2)) and the
// redirections are recorded in the file-map manifest:
//
//	/tmp/fssb-7/file-map
//	/tmp/fssb-7/f61bd54ddf9c9dce6076a3c8a7892e49   <- md5("save_empty_file")
//
// The package never writes to or deletes instance directories. Cleanup is the
// outer invoker's job.
package sandbox
