package event

import "fmt"

// Key is a host keyboard key, independent of the host's key codes.
type Key int

// Host keys.
const (
	KeyUnknown Key = iota
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ
	Key0
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeySpace
	KeyReturn
	KeyEscape
	KeyBackspace
	KeyTab
	KeyShift
	KeyCtrl
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5

	numKeys
)

var keyNames = map[Key]string{
	KeyUnknown:   "UNKNOWN",
	KeySpace:     "SPACE",
	KeyReturn:    "RETURN",
	KeyEscape:    "ESCAPE",
	KeyBackspace: "BACKSPACE",
	KeyTab:       "TAB",
	KeyShift:     "SHIFT",
	KeyCtrl:      "CTRL",
	KeyUp:        "UP",
	KeyDown:      "DOWN",
	KeyLeft:      "LEFT",
	KeyRight:     "RIGHT",
	KeyF1:        "F1",
	KeyF2:        "F2",
	KeyF3:        "F3",
	KeyF4:        "F4",
	KeyF5:        "F5",
}

func (k Key) String() string {
	switch {
	case k >= KeyA && k <= KeyZ:
		return string(rune('A' + int(k-KeyA)))
	case k >= Key0 && k <= Key9:
		return string(rune('0' + int(k-Key0)))
	}

	if name, ok := keyNames[k]; ok {
		return name
	}

	return fmt.Sprintf("Key(%d)", int(k))
}

// ParseKey returns the key with the given name, as printed by Key.String.
func ParseKey(name string) (Key, error) {
	for k := KeyUnknown + 1; k < numKeys; k++ {
		if k.String() == name {
			return k, nil
		}
	}

	return KeyUnknown, fmt.Errorf("event: unknown key %q", name)
}

// Keys returns every known key, KeyUnknown excluded.
func Keys() []Key {
	keys := make([]Key, 0, numKeys-1)
	for k := KeyUnknown + 1; k < numKeys; k++ {
		keys = append(keys, k)
	}

	return keys
}
