//go:build !lockorder

package room

// Without the lockorder build tag, these are free no-ops: the real
// bookkeeping in lockorder_debug.go costs a goroutine-ID lookup and a
// map lookup per lock/unlock, worth paying in tests but not in a
// production build.
func lockorderEnterRoom()  {}
func lockorderExitRoom()   {}
func lockorderEnterRooms() {}
