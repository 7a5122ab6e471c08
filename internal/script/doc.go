// Package script loads module definitions written in Lua. A script builds a
// module value through a small embedded API (Module.new, option, on_setup,
// on_hook) and returns it; the loader translates that value into a regular
// module definition whose callbacks re-enter the interpreter.
//
// One interpreter state is shared by all scripts of an application run.
// Callbacks execute on the install path, which is strictly sequential, so
// the state needs no locking.
package script
