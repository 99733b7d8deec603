//go:build darwin

package darwin

/*
#cgo CFLAGS: -x objective-c -fobjc-arc
#cgo LDFLAGS: -framework Cocoa -framework ApplicationServices
#include <stdlib.h>
#include "bridge.h"
*/
import "C"

import (
	"errors"
	"strconv"
	"strings"
	"unsafe"

	"github.com/berrythewa/clipstack/internal/types"
)

func takeString(cstr *C.char) (string, bool) {
	if cstr == nil {
		return "", false
	}
	defer C.free(unsafe.Pointer(cstr))
	return C.GoString(cstr), true
}

func changeCount() int64 {
	return int64(C.cs_change_count())
}

func pasteboardTypes() []string {
	s, ok := takeString(C.cs_types())
	if !ok || s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func readType(format string) []byte {
	cformat := C.CString(format)
	defer C.free(unsafe.Pointer(cformat))

	var length C.int
	buf := C.cs_read(cformat, &length)
	if buf == nil {
		return nil
	}
	defer C.free(buf)
	return C.GoBytes(buf, length)
}

type writeItem struct {
	format string
	data   []byte
}

func writeTypes(items []writeItem) error {
	C.cs_write_begin()
	for _, it := range items {
		cformat := C.CString(it.format)
		cdata := C.CBytes(it.data)
		C.cs_write_add(cformat, cdata, C.int(len(it.data)))
		C.free(unsafe.Pointer(cformat))
		C.free(cdata)
	}
	if C.cs_write_commit() == 0 {
		return errors.New("pasteboard rejected the write")
	}
	return nil
}

// parseApp decodes one "pid\tbundle\tname\tregular" record
func parseApp(line string) (types.App, bool) {
	parts := strings.SplitN(line, "\t", 4)
	if len(parts) != 4 {
		return types.App{}, false
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil {
		return types.App{}, false
	}
	return types.App{PID: pid, BundleID: parts[1], Name: parts[2], Regular: parts[3] == "1"}, true
}

func selfApp() types.App {
	s, _ := takeString(C.cs_self())
	app, _ := parseApp(s)
	return app
}

func frontmost() (types.App, error) {
	s, ok := takeString(C.cs_frontmost())
	if !ok {
		return types.App{}, errors.New("no frontmost application")
	}
	app, ok := parseApp(s)
	if !ok {
		return types.App{}, errors.New("unreadable application record")
	}
	return app, nil
}

func runningApps() []types.App {
	s, ok := takeString(C.cs_running_apps())
	if !ok || s == "" {
		return nil
	}
	var apps []types.App
	for _, line := range strings.Split(s, "\n") {
		if app, ok := parseApp(line); ok {
			apps = append(apps, app)
		}
	}
	return apps
}

func activate(pid int) bool {
	return C.cs_activate(C.int(pid)) != 0
}

func axTrusted(prompt bool) bool {
	p := C.int(0)
	if prompt {
		p = 1
	}
	return C.cs_ax_trusted(p) != 0
}

func pressMenu(pid int, menu string, items []string) (string, error) {
	cmenu := C.CString(menu)
	defer C.free(unsafe.Pointer(cmenu))
	citems := C.CString(strings.Join(items, "\n"))
	defer C.free(unsafe.Pointer(citems))

	var cerr *C.char
	pressed, ok := takeString(C.cs_press_menu(C.int(pid), cmenu, citems, &cerr))
	if msg, failed := takeString(cerr); failed {
		return "", errors.New(msg)
	}
	if !ok {
		return "", errors.New("menu item not pressed")
	}
	return pressed, nil
}

func runScript(source string) error {
	csrc := C.CString(source)
	defer C.free(unsafe.Pointer(csrc))
	if msg, failed := takeString(C.cs_run_script(csrc)); failed {
		return errors.New(msg)
	}
	return nil
}

func sendPaste() bool {
	return C.cs_send_paste() != 0
}
