// Package easy wraps a single native transfer session in an owning,
// type checked handle.
//
// An [Easy] owns exactly one session and frees it once. Options are set
// with [Easy.Set], which checks the Go type of the value against the
// category encoded in the option identifier before anything reaches the
// engine, and read back with [GetInfo]. Callbacks are registered as Go
// funcs through the On methods; the engine only ever sees package level
// trampolines and the handle's private state, so handles can be moved
// without invalidating what is registered on them.
//
// By default failed calls return an [*Error]. A handle created with
// [WithLenientErrors], or switched with [Easy.SetStrict], returns nil
// instead and records the status for [Easy.OK], [Easy.Code] and [Easy.Err].
//
// [List] and [Form] own the string lists and multipart forms handed to
// object options.
package easy
