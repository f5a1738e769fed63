package easy

import (
	"fmt"
	"math"
	"reflect"

	"github.com/adamwoolhether/xfer/native"
)

// setopt and getinfo are the engine entry points; tests replace them to
// observe which calls reach the engine.
var (
	setopt  = (*native.Session).Setopt
	getinfo = (*native.Session).Getinfo
)

type category int

const (
	catInvalid category = iota
	catNull
	catLong
	catLarge
	catFunction
	catObject
)

func (c category) String() string {
	switch c {
	case catNull:
		return "nil"
	case catLong:
		return "integer"
	case catLarge:
		return "large integer"
	case catFunction:
		return "function"
	case catObject:
		return "object"
	}
	return "unsupported value"
}

func (c category) accepts(t native.OptionType) bool {
	switch c {
	case catNull:
		return t == native.TypeObjectPoint || t == native.TypeFunctionPoint
	case catLong:
		return t == native.TypeLong
	case catLarge:
		return t == native.TypeOffT
	case catFunction:
		return t == native.TypeFunctionPoint
	case catObject:
		return t == native.TypeObjectPoint
	}
	return false
}

// funcTypes maps callback options to the func type the engine stores, so
// that plain func literals of the right shape are accepted by Set.
var funcTypes = map[native.Option]reflect.Type{
	native.OptWriteFunction:       reflect.TypeFor[native.WriteFunc](),
	native.OptHeaderFunction:      reflect.TypeFor[native.WriteFunc](),
	native.OptReadFunction:        reflect.TypeFor[native.ReadFunc](),
	native.OptProgressFunction:    reflect.TypeFor[native.ProgressFunc](),
	native.OptXferInfoFunction:    reflect.TypeFor[native.XferInfoFunc](),
	native.OptDebugFunction:       reflect.TypeFor[native.DebugFunc](),
	native.OptSeekFunction:        reflect.TypeFor[native.SeekFunc](),
	native.OptIoctlFunction:       reflect.TypeFor[native.IoctlFunc](),
	native.OptSockOptFunction:     reflect.TypeFor[native.SockOptFunc](),
	native.OptOpenSocketFunction:  reflect.TypeFor[native.OpenSocketFunc](),
	native.OptCloseSocketFunction: reflect.TypeFor[native.CloseSocketFunc](),
	native.OptSSLCtxFunction:      reflect.TypeFor[native.SSLCtxFunc](),
	native.OptChunkBgnFunction:    reflect.TypeFor[native.ChunkBgnFunc](),
	native.OptChunkEndFunction:    reflect.TypeFor[native.ChunkEndFunc](),
	native.OptFnMatchFunction:     reflect.TypeFor[native.FnMatchFunc](),
}

// classify maps value onto an option category and the representation the
// engine stores for it.
func classify(opt native.Option, value any) (category, any) {
	switch v := value.(type) {
	case nil:
		return catNull, nil
	case native.Off:
		return catLarge, v
	case bool:
		if v {
			return catLong, int64(1)
		}
		return catLong, int64(0)
	case *List:
		return catObject, v.Get()
	case *Form:
		return catObject, v.Get()
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return catLong, rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return catInvalid, nil
		}
		return catLong, int64(u)
	case reflect.String:
		return catObject, rv.String()
	case reflect.Func:
		if want, ok := funcTypes[opt]; ok && rv.Type() != want && rv.Type().ConvertibleTo(want) {
			return catFunction, rv.Convert(want).Interface()
		}
		return catFunction, value
	case reflect.Pointer, reflect.UnsafePointer, reflect.Slice, reflect.Map, reflect.Chan, reflect.Interface:
		return catObject, value
	}

	return catInvalid, nil
}

// Set stores value for opt after checking that its Go type fits the
// option's category. Integers and bools feed long options, [native.Off]
// feeds large options, funcs feed callback options and strings, pointers,
// slices, maps, [*List] and [*Form] feed object options. nil clears object
// and callback options. A mismatch fails with BadFunctionArgument without
// reaching the engine.
func (e *Easy) Set(opt native.Option, value any) error {
	if e.s == nil {
		return e.emptyErr("set")
	}

	cat, v := classify(opt, value)
	if !cat.accepts(opt.Type()) {
		return e.handle("set", native.BadFunctionArgument,
			fmt.Sprintf("option %v takes a %v value, got %v (%T)", opt, opt.Type(), cat, value))
	}

	code := setopt(e.s, opt, v)
	return e.handle("set", code, fmt.Sprintf("setting option %v", opt))
}

// Clear sets each object or callback option in opts back to null. Unlike
// Set it leaves the recorded status alone, so it can follow a Perform whose
// outcome is still to be read. Failures are returned in either error mode.
func (e *Easy) Clear(opts ...native.Option) error {
	if e.s == nil {
		return e.emptyErr("clear")
	}

	for _, opt := range opts {
		if !catNull.accepts(opt.Type()) {
			return &Error{Op: "clear", Code: native.BadFunctionArgument,
				Detail: fmt.Sprintf("option %v takes a %v value and cannot be cleared", opt, opt.Type())}
		}
		if code := setopt(e.s, opt, nil); code != native.OK {
			return &Error{Op: "clear", Code: code, Detail: fmt.Sprintf("clearing option %v", opt)}
		}
	}
	return nil
}

// Info is the set of Go types GetInfo can return.
type Info interface {
	string | int64 | float64 | native.Off | []string
}

func infoType[T Info]() native.InfoType {
	var zero T
	switch any(zero).(type) {
	case string:
		return native.InfoString
	case int64:
		return native.InfoLong
	case float64:
		return native.InfoDouble
	case native.Off:
		return native.InfoOffT
	}
	return native.InfoSList
}

// GetInfo reads key from the last transfer. T must match the key's type;
// on any failure def is returned along with the error in strict mode.
func GetInfo[T Info](e *Easy, key native.Info, def T) (T, error) {
	if e.s == nil {
		return def, e.emptyErr("getinfo")
	}

	if want := infoType[T](); key.Type() != want {
		return def, e.handle("getinfo", native.BadFunctionArgument,
			fmt.Sprintf("info %v does not report %T", key, def))
	}

	var out T
	var code native.Code
	switch p := any(&out).(type) {
	case *[]string:
		var list *native.SList
		if code = getinfo(e.s, key, &list); code == native.OK {
			*p = list.Strings()
			native.SlistFreeAll(list)
		}
	default:
		code = getinfo(e.s, key, p)
	}

	if err := e.handle("getinfo", code, fmt.Sprintf("reading info %v", key)); err != nil || code != native.OK {
		return def, err
	}
	return out, nil
}
