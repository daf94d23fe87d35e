// Package hardware defines the HardwareIO collaborator boundary: the set
// of operations the engine needs from whatever physical or simulated
// front panel and MIDI transport it is driving.
package hardware

// HardwareIO is the external-I/O collaborator the rest of the module
// depends on only through this interface, so that the playback engine
// never has direct knowledge of GPIO, ADCs, or a concrete MIDI transport.
type HardwareIO interface {
	// Init prepares the hardware for use (opens ports, configures pins).
	Init() error
	// Shutdown releases hardware resources.
	Shutdown() error

	// ReadButton reports whether the given step button (0..15) currently
	// reads pressed.
	ReadButton(step int) bool
	// ReadRotary reads a raw 0..127 rotary encoder value by name
	// ("mode", "tempo", "pattern", "track").
	ReadRotary(name string) uint8
	// ReadSlider reads a raw 0..127 slider value by pot index (0..3).
	ReadSlider(index int) uint8

	// SendMIDI transmits a raw MIDI byte packet immediately.
	SendMIDI(payload []byte) error

	// SetLED sets a boolean LED's state.
	SetLED(index int, on bool)
	// SetLEDBrightness sets a PWM-capable LED's brightness, 0..255.
	SetLEDBrightness(index int, value uint8)

	// Millis returns the hardware's monotonic millisecond clock.
	Millis() uint32
	// Update services any hardware-level polling that must happen once
	// per host tick (debounce sampling, ADC scans).
	Update()
}
