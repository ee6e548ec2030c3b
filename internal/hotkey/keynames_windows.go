//go:build windows

package hotkey

import "fmt"

var vkNames = map[uint32]string{
	0x08: "backspace", 0x09: "tab", 0x0D: "enter", 0x13: "pause",
	0x14: "capslock", 0x1B: "esc", 0x20: "space",
	0x21: "pageup", 0x22: "pagedown", 0x23: "end", 0x24: "home",
	0x25: "left", 0x26: "up", 0x27: "right", 0x28: "down",
	0x2C: "printscreen", 0x2D: "insert", 0x2E: "delete",
	0x10: "shift", 0xA0: "lshift", 0xA1: "rshift",
	0x11: "control", 0xA2: "lcontrol", 0xA3: "rcontrol",
	0x12: "alt", 0xA4: "lmenu", 0xA5: "rmenu",
	0x5B: "lwin", 0x5C: "rwin",
	0xBA: ";", 0xBB: "=", 0xBC: ",", 0xBD: "-", 0xBE: ".", 0xBF: "/",
	0xC0: "`", 0xDB: "[", 0xDC: "\\", 0xDD: "]", 0xDE: "'",
}

// vkName converts a Windows virtual-key code to the key name used in combos.
func vkName(vk uint32) string {
	switch {
	case vk >= 0x30 && vk <= 0x39:
		return string(rune('0' + vk - 0x30))
	case vk >= 0x41 && vk <= 0x5A:
		return string(rune('a' + vk - 0x41))
	case vk >= 0x70 && vk <= 0x87:
		return fmt.Sprintf("f%d", vk-0x6F)
	case vk >= 0x60 && vk <= 0x69:
		return fmt.Sprintf("num%d", vk-0x60)
	}
	if name, ok := vkNames[vk]; ok {
		return name
	}
	return fmt.Sprintf("vk%02x", vk)
}
