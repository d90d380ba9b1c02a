package uci

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

type OptionKind int

const (
	OptionString OptionKind = iota + 1
	OptionInt
	OptionBool
)

// OptionValue is a string, integer or boolean engine option value.
type OptionValue struct {
	kind OptionKind
	s    string
	i    int64
	b    bool
}

func StringOption(v string) OptionValue { return OptionValue{kind: OptionString, s: v} }
func IntOption(v int64) OptionValue     { return OptionValue{kind: OptionInt, i: v} }
func BoolOption(v bool) OptionValue     { return OptionValue{kind: OptionBool, b: v} }

func (v OptionValue) Kind() OptionKind { return v.kind }

func (v OptionValue) Int() (int64, bool) { return v.i, v.kind == OptionInt }

// String renders the value the way it goes on the setoption line.
func (v OptionValue) String() string {
	switch v.kind {
	case OptionInt:
		return strconv.FormatInt(v.i, 10)
	case OptionBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// ParseOptionValue converts a decoded config value into an OptionValue.
// Strings that spell an integer or a boolean are kept as strings; the engine
// parses them the same way either way.
func ParseOptionValue(raw any) (OptionValue, error) {
	switch v := raw.(type) {
	case string:
		return StringOption(v), nil
	case bool:
		return BoolOption(v), nil
	case int:
		return IntOption(int64(v)), nil
	case int64:
		return IntOption(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return OptionValue{}, fmt.Errorf("integer option %d out of range", v)
		}
		return IntOption(int64(v)), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return OptionValue{}, fmt.Errorf("option value %v is not an integer", v)
		}
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if v >= math.MaxInt64 || v < math.MinInt64 {
			return OptionValue{}, fmt.Errorf("integer option %v out of range", v)
		}
		return IntOption(int64(v)), nil
	case nil:
		return OptionValue{}, fmt.Errorf("option value is empty")
	default:
		return OptionValue{}, fmt.Errorf("unsupported option value type %T", raw)
	}
}

// Options maps engine option names to values.
type Options map[string]OptionValue

// Merge returns a copy of o with every entry of over applied on top.
func (o Options) Merge(over Options) Options {
	out := make(Options, len(o)+len(over))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

func (o Options) Names() []string {
	names := make([]string, 0, len(o))
	for k := range o {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate rejects names and values that would break the line protocol and
// the few numeric options whose range every UCI engine documents.
func (o Options) Validate() error {
	for _, name := range o.Names() {
		v := o[name]
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("engine option name must not be empty")
		}
		if strings.ContainsAny(name, "\r\n") || strings.ContainsAny(v.String(), "\r\n") {
			return fmt.Errorf("engine option %q contains a line break", name)
		}
		if nameHasValueToken(name) {
			return fmt.Errorf("engine option %q must not contain the word value", name)
		}
		if v.kind == 0 {
			return fmt.Errorf("engine option %q has no value", name)
		}
		n, isInt := v.Int()
		switch name {
		case "Skill Level":
			if isInt && (n < 0 || n > 20) {
				return fmt.Errorf("skill level %d out of range 0-20", n)
			}
		case "Hash":
			if isInt && n <= 0 {
				return fmt.Errorf("hash size must be > 0: %d", n)
			}
		case "MultiPV", "Threads":
			if isInt && n <= 0 {
				return fmt.Errorf("%s must be > 0: %d", strings.ToLower(name), n)
			}
		}
	}
	return nil
}

// nameHasValueToken reports names that would end early on the setoption
// line, where the first "value" token starts the value.
func nameHasValueToken(name string) bool {
	for _, f := range strings.Fields(name) {
		if strings.EqualFold(f, "value") {
			return true
		}
	}
	return false
}

// changed lists the option names whose value in next differs from prev.
func changed(prev, next Options) []string {
	var names []string
	for _, name := range next.Names() {
		if old, ok := prev[name]; ok && old == next[name] {
			continue
		}
		names = append(names, name)
	}
	return names
}
