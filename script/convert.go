package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/fable/engine/vars"
)

// luaToGo converts a Lua scalar to its Go form. Tables and functions
// have no scalar form and map to nil.
func luaToGo(v lua.LValue) any {
	switch t := v.(type) {
	case lua.LBool:
		return bool(t)
	case lua.LNumber:
		return float64(t)
	case lua.LString:
		return string(t)
	default:
		return nil
	}
}

// goToLua converts a Go scalar to its Lua form.
func goToLua(v any) lua.LValue {
	switch t := vars.Normalize(v).(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(t)
	case float64:
		return lua.LNumber(t)
	case string:
		return lua.LString(t)
	default:
		return lua.LNil
	}
}
