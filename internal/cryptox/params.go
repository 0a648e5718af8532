package cryptox

import (
	"fmt"
	"strconv"
	"strings"
)

// Params are the argon2id cost parameters stored next to every Identifier.
type Params struct {
	// Memory in KiB.
	Memory  uint32
	Time    uint32
	Threads uint8
}

// DefaultParams: 64 MiB, 3 passes, 1 lane.
var DefaultParams = Params{Memory: 64 * 1024, Time: 3, Threads: 1}

// argon2 version 0x13.
const argon2Version = 19

// maxMemory bounds what a server-supplied parameter string may ask for.
const maxMemory = 1024 * 1024

func (p Params) String() string {
	return fmt.Sprintf("algo=argon2id,v=%d,m=%d,t=%d,p=%d", argon2Version, p.Memory, p.Time, p.Threads)
}

func (p Params) validate() error {
	switch {
	case p.Time < 1:
		return fmt.Errorf("invalid parameters: t must be >= 1")
	case p.Threads < 1:
		return fmt.Errorf("invalid parameters: p must be >= 1")
	case p.Memory < 8*uint32(p.Threads):
		return fmt.Errorf("invalid parameters: m must be >= 8*p")
	case p.Memory > maxMemory:
		return fmt.Errorf("invalid parameters: m exceeds %d KiB", maxMemory)
	}
	return nil
}

// ParseParams reads "algo=argon2id,v=19,m=65536,t=3,p=1". Missing or
// unparsable m/t/p fall back to DefaultParams; unknown keys are ignored.
func ParseParams(s string) (Params, error) {
	p := DefaultParams
	for _, part := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "algo":
			if value != "argon2id" {
				return Params{}, fmt.Errorf("invalid parameters: unsupported algorithm %q", value)
			}
		case "m":
			if v, err := strconv.ParseUint(value, 10, 32); err == nil {
				p.Memory = uint32(v)
			}
		case "t":
			if v, err := strconv.ParseUint(value, 10, 32); err == nil {
				p.Time = uint32(v)
			}
		case "p":
			if v, err := strconv.ParseUint(value, 10, 8); err == nil {
				p.Threads = uint8(v)
			}
		}
	}
	if err := p.validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}
