//go:build js && wasm

package main

import (
	"syscall/js"

	"github.com/voxelforge/voxconv/api"
)

func toUint8Array(b []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(b))
	js.CopyBytesToJS(arr, b)
	return arr
}

func fromUint8Array(v js.Value) []byte {
	b := make([]byte, v.Get("length").Int())
	js.CopyBytesToGo(b, v)
	return b
}

// voxConvert(inName, bytes, outName[, fillHollow]) -> Uint8Array | error string
func voxConvert(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return js.ValueOf("usage: voxConvert(inName, bytes, outName[, fillHollow])")
	}
	opts := api.Options{}
	if len(args) > 3 {
		opts.FillHollow = args[3].Truthy()
	}
	out, err := api.Convert(fromUint8Array(args[1]), args[0].String(), args[2].String(), opts)
	if err != nil {
		return js.ValueOf(err.Error())
	}
	return toUint8Array(out)
}

// voxPalette(name, bytes) -> PNG Uint8Array | error string
func voxPalette(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return js.ValueOf("usage: voxPalette(name, bytes)")
	}
	out, err := api.PalettePNG(fromUint8Array(args[1]), args[0].String())
	if err != nil {
		return js.ValueOf(err.Error())
	}
	return toUint8Array(out)
}

func voxFormats(this js.Value, args []js.Value) any {
	names := api.Formats()
	arr := js.Global().Get("Array").New(len(names))
	for i, name := range names {
		arr.SetIndex(i, name)
	}
	return arr
}

func main() {
	js.Global().Set("voxConvert", js.FuncOf(voxConvert))
	js.Global().Set("voxPalette", js.FuncOf(voxPalette))
	js.Global().Set("voxFormats", js.FuncOf(voxFormats))
	select {}
}
