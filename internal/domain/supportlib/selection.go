package supportlib

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidValue is returned when a variant value is outside its enumerated set.
var ErrInvalidValue = errors.New("invalid value")

// Runtime is the Windows C runtime linking mode.
type Runtime string

// Conversion is the character-set conversion backend.
type Conversion string

// Arch is the target CPU architecture width.
type Arch string

const (
	// RuntimeDynamic links the C runtime dynamically (/MD).
	RuntimeDynamic Runtime = "md"
	// RuntimeStatic links the C runtime statically (/MT).
	RuntimeStatic Runtime = "mt"

	// ConversionIconv selects the libiconv backend.
	ConversionIconv Conversion = "iconv"
	// ConversionICU selects the ICU backend.
	ConversionICU Conversion = "icu"

	// Arch32 selects 32-bit archives.
	Arch32 Arch = "32"
	// Arch64 selects 64-bit archives.
	Arch64 Arch = "64"
)

// Defaults used when a flag is not given.
const (
	DefaultRuntime    = RuntimeDynamic
	DefaultConversion = ConversionIconv
	DefaultArch       = Arch64
)

// Runtimes lists accepted runtime values.
func Runtimes() []Runtime { return []Runtime{RuntimeDynamic, RuntimeStatic} }

// Conversions lists accepted conversion backends.
func Conversions() []Conversion { return []Conversion{ConversionIconv, ConversionICU} }

// Arches lists accepted architectures.
func Arches() []Arch { return []Arch{Arch32, Arch64} }

// String implements pflag.Value.
func (r *Runtime) String() string { return string(*r) }

// Set implements pflag.Value and rejects values outside Runtimes.
func (r *Runtime) Set(s string) error {
	v, err := oneOf(s, Runtimes())
	if err != nil {
		return err
	}

	*r = v

	return nil
}

// Type implements pflag.Value.
func (*Runtime) Type() string { return "md|mt" }

// String implements pflag.Value.
func (c *Conversion) String() string { return string(*c) }

// Set implements pflag.Value and rejects values outside Conversions.
func (c *Conversion) Set(s string) error {
	v, err := oneOf(s, Conversions())
	if err != nil {
		return err
	}

	*c = v

	return nil
}

// Type implements pflag.Value.
func (*Conversion) Type() string { return "iconv|icu" }

// String implements pflag.Value.
func (a *Arch) String() string { return string(*a) }

// Set implements pflag.Value and rejects values outside Arches.
func (a *Arch) Set(s string) error {
	v, err := oneOf(s, Arches())
	if err != nil {
		return err
	}

	*a = v

	return nil
}

// Type implements pflag.Value.
func (*Arch) Type() string { return "32|64" }

// oneOf returns the allowed value equal to s.
func oneOf[T ~string](s string, allowed []T) (T, error) {
	for _, v := range allowed {
		if string(v) == s {
			return v, nil
		}
	}

	names := make([]string, 0, len(allowed))
	for _, v := range allowed {
		names = append(names, string(v))
	}

	var zero T

	return zero, fmt.Errorf("%q, expected one of %s: %w", s, strings.Join(names, ", "), ErrInvalidValue)
}

// Selection describes which support archives to fetch.
type Selection struct {
	// Release is the DCMTK release the archives were built for.
	Release Release
	// Runtime is the C runtime linking mode.
	Runtime Runtime
	// Conversion is the character-set conversion backend.
	Conversion Conversion
	// Arch is the CPU architecture width.
	Arch Arch
}

// Validate checks every variant against its enumerated set.
func (s Selection) Validate() error {
	if _, err := oneOf(string(s.Runtime), Runtimes()); err != nil {
		return fmt.Errorf("runtime: %w", err)
	}

	if _, err := oneOf(string(s.Conversion), Conversions()); err != nil {
		return fmt.Errorf("conversion: %w", err)
	}

	if _, err := oneOf(string(s.Arch), Arches()); err != nil {
		return fmt.Errorf("arch: %w", err)
	}

	if s.Release.Version == "" {
		return fmt.Errorf("release version is empty: %w", ErrInvalidValue)
	}

	return nil
}

// Needles returns the four substrings an archive link must contain.
// The runtime code appears uppercased in vendor file names.
func (s Selection) Needles() []string {
	return []string{
		"dcmtk-" + s.Release.Version,
		strings.ToUpper(string(s.Runtime)),
		string(s.Conversion),
		"win" + string(s.Arch),
	}
}

// Matches reports whether href contains every needle.
func (s Selection) Matches(href string) bool {
	for _, needle := range s.Needles() {
		if !strings.Contains(href, needle) {
			return false
		}
	}

	return true
}
