package cipherengine

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// HardwareAccelerated reports whether the running CPU exposes an AES
// instruction set Go's crypto/aes implementation can dispatch to. This is
// observability only: crypto/aes already uses hardware AES transparently
// when available, so the result does not change Encrypt/Decrypt behaviour,
// only what gets reported on the hardware_acceleration_enabled metric.
func HardwareAccelerated() bool {
	switch runtime.GOARCH {
	case "amd64", "386":
		return cpu.X86.HasAES
	case "arm64":
		return cpu.ARM64.HasAES
	case "s390x":
		return cpu.S390X.HasAES
	default:
		return false
	}
}

// Info returns a small diagnostic map suitable for health/debug endpoints,
// mirrored from the same reporting shape used elsewhere in the ecosystem for
// hardware feature detection.
func Info() map[string]any {
	return map[string]any{
		"aes_hardware_support": HardwareAccelerated(),
		"architecture":         runtime.GOARCH,
		"goos":                 runtime.GOOS,
		"go_version":           runtime.Version(),
	}
}
