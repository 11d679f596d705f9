//go:build (linux || freebsd || openbsd || netbsd || dragonfly) && !cgo

package clipboard

import (
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// owner holds the CLIPBOARD selection on a hidden window and answers
// conversion requests from other clients until another client takes it.
type owner struct {
	conn   *xgb.Conn
	window xproto.Window

	clipboard, targets, utf8, textPlain, png xproto.Atom

	mu   sync.RWMutex
	data map[xproto.Atom][]byte
}

var backend *owner

func initBackend() error {
	if !hasDisplay() {
		return errNoDisplay
	}
	conn, err := xgb.NewConn()
	if err != nil {
		return err
	}
	o := &owner{conn: conn}
	if err := o.setup(); err != nil {
		conn.Close()
		return err
	}
	backend = o
	go o.serve()
	return nil
}

func (o *owner) setup() error {
	screen := xproto.Setup(o.conn).DefaultScreen(o.conn)
	window, err := xproto.NewWindowId(o.conn)
	if err != nil {
		return err
	}
	if err := xproto.CreateWindowChecked(o.conn, screen.RootDepth, window, screen.Root, 0, 0, 1, 1, 0,
		xproto.WindowClassInputOutput, screen.RootVisual, xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange}).Check(); err != nil {
		return err
	}
	o.window = window
	for name, dst := range map[string]*xproto.Atom{
		"CLIPBOARD":                &o.clipboard,
		"TARGETS":                  &o.targets,
		"UTF8_STRING":              &o.utf8,
		"text/plain;charset=utf-8": &o.textPlain,
		"image/png":                &o.png,
	} {
		reply, err := xproto.InternAtom(o.conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			return err
		}
		*dst = reply.Atom
	}
	return nil
}

func writePNG(data []byte) error {
	return backend.own(map[xproto.Atom][]byte{backend.png: append([]byte(nil), data...)})
}

func writeText(data []byte) error {
	text := append([]byte(nil), data...)
	return backend.own(map[xproto.Atom][]byte{
		backend.utf8:      text,
		backend.textPlain: text,
		xproto.AtomString: text,
	})
}

func (o *owner) own(data map[xproto.Atom][]byte) error {
	o.mu.Lock()
	o.data = data
	o.mu.Unlock()
	return xproto.SetSelectionOwnerChecked(o.conn, o.window, o.clipboard, xproto.TimeCurrentTime).Check()
}

func (o *owner) serve() {
	for {
		ev, err := o.conn.WaitForEvent()
		if err != nil {
			return
		}
		switch e := ev.(type) {
		case xproto.SelectionRequestEvent:
			o.answer(e)
		case xproto.SelectionClearEvent:
			o.mu.Lock()
			o.data = nil
			o.mu.Unlock()
		}
	}
}

func (o *owner) answer(e xproto.SelectionRequestEvent) {
	property := e.Property
	if property == xproto.AtomNone {
		property = e.Target
	}

	o.mu.RLock()
	payload, ok := o.data[e.Target]
	var offered []xproto.Atom
	for atom := range o.data {
		offered = append(offered, atom)
	}
	o.mu.RUnlock()

	switch {
	case e.Target == o.targets:
		list := append([]xproto.Atom{o.targets}, offered...)
		buf := make([]byte, len(list)*4)
		for i, atom := range list {
			xgb.Put32(buf[i*4:], uint32(atom))
		}
		xproto.ChangeProperty(o.conn, xproto.PropModeReplace, e.Requestor, property, xproto.AtomAtom, 32, uint32(len(list)), buf)
	case ok:
		typ := e.Target
		if typ != o.png {
			typ = o.utf8
		}
		xproto.ChangeProperty(o.conn, xproto.PropModeReplace, e.Requestor, property, typ, 8, uint32(len(payload)), payload)
	default:
		property = xproto.AtomNone
	}

	reply := xproto.SelectionNotifyEvent{
		Time:      e.Time,
		Requestor: e.Requestor,
		Selection: e.Selection,
		Target:    e.Target,
		Property:  property,
	}
	_ = xproto.SendEvent(o.conn, false, e.Requestor, 0, string(reply.Bytes()))
}
