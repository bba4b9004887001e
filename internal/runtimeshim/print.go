package runtimeshim

import (
	"fmt"
	"math"
	"strings"
)

// PrintStr is hc_print_str: a raw, unformatted write of a string already
// decoded from interpreter memory by the caller.
func (r *Runtime) PrintStr(text string) {
	fmt.Fprint(r.Stdout, text)
}

// PutChar is hc_put_char: write the low byte of ch.
func (r *Runtime) PutChar(ch int64) {
	fmt.Fprintf(r.Stdout, "%c", byte(ch))
}

// lookupZString walks a NUL-separated string table to its index'th entry,
// the same linear scan LookupZString does.
func lookupZString(table string, index int64) string {
	if index < 0 {
		return ""
	}

	parts := strings.Split(table, "\x00")
	if int(index) >= len(parts) {
		return ""
	}

	return parts[index]
}

func printBinary(buf *strings.Builder, value uint64) {
	started := false

	for bit := 63; bit >= 0; bit-- {
		one := (value>>uint(bit))&1 != 0
		if one {
			started = true
		}

		if started {
			if one {
				buf.WriteByte('1')
			} else {
				buf.WriteByte('0')
			}
		}
	}

	if !started {
		buf.WriteByte('0')
	}
}

// PrintFmt interprets a printf-style format string against args, the Go
// port of hc_print_fmt's hand-rolled conversion-spec scanner. args carry
// raw i64 register values; a double arrives as its IEEE-754 bit pattern,
// which is how the interpreter's registers hold it (emitPrint passes it
// with its own double type, not bitcast), %s/%z/%p arguments
// carry interpreter-memory addresses the caller has already resolved to
// strings/table text before calling PrintFmt.
//
// stringAt resolves an address operand (as produced by %s/%z's argument)
// to its NUL-terminated text; it is supplied by the interpreter, which
// owns the byte arena this package never touches directly.
func (r *Runtime) PrintFmt(format string, args []int64, stringAt func(addr int64) string) {
	var out strings.Builder

	argIdx := 0

	nextArg := func() int64 {
		if argIdx >= len(args) {
			return 0
		}

		v := args[argIdx]
		argIdx++

		return v
	}

	runes := []rune(format)
	i := 0

	for i < len(runes) {
		if runes[i] != '%' {
			out.WriteRune(runes[i])
			i++

			continue
		}

		specBegin := i
		i++

		if i < len(runes) && runes[i] == '%' {
			out.WriteByte('%')
			i++

			continue
		}

		for i < len(runes) && strings.ContainsRune("-+ #0'", runes[i]) {
			i++
		}

		widthFromArg := false
		if i < len(runes) && runes[i] == '*' {
			widthFromArg = true
			i++
		} else {
			for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
				i++
			}
		}

		precisionFromArg := false

		if i < len(runes) && runes[i] == '.' {
			i++
			if i < len(runes) && runes[i] == '*' {
				precisionFromArg = true
				i++
			} else {
				for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
					i++
				}
			}
		}

		for i < len(runes) && strings.ContainsRune("hljtLq", runes[i]) {
			lm := runes[i]
			i++

			if i < len(runes) && runes[i] == lm {
				i++
			}
		}

		if i >= len(runes) {
			break
		}

		conv := runes[i]
		i++

		width := 0
		if widthFromArg {
			width = int(nextArg())
		}

		precision := 0
		if precisionFromArg {
			precision = int(nextArg())
		}

		switch conv {
		case 'z':
			idx := nextArg()
			table := stringAt(nextArg())
			out.WriteString(lookupZString(table, idx))
		case 'b':
			printBinary(&out, uint64(nextArg()))
		case 'd', 'i':
			writeFormatted(&out, widthFromArg, precisionFromArg, width, precision, "d", nextArg())
		case 'u':
			writeFormatted(&out, widthFromArg, precisionFromArg, width, precision, "d", uint64(nextArg()))
		case 'x':
			writeFormatted(&out, widthFromArg, precisionFromArg, width, precision, "x", uint64(nextArg()))
		case 'X':
			writeFormatted(&out, widthFromArg, precisionFromArg, width, precision, "X", uint64(nextArg()))
		case 'o':
			writeFormatted(&out, widthFromArg, precisionFromArg, width, precision, "o", uint64(nextArg()))
		case 'p':
			fmt.Fprintf(&out, "%#x", uint64(nextArg()))
		case 'P':
			raw := uint64(nextArg())
			if raw == 0 {
				out.WriteString("0x0")
			} else {
				fmt.Fprintf(&out, "%#x", raw)
			}
		case 'c':
			out.WriteByte(byte(nextArg() & 0xff))
		case 's':
			text := stringAt(nextArg())
			if text == "" {
				text = "(null)"
			}

			writeFormatted(&out, widthFromArg, precisionFromArg, width, precision, "s", text)
		case 'f', 'F', 'e', 'E', 'g', 'G':
			value := math.Float64frombits(uint64(nextArg()))
			writeFormatted(&out, widthFromArg, precisionFromArg, width, precision, string(conv), value)
		default:
			out.WriteString(string(runes[specBegin:i]))
		}
	}

	fmt.Fprint(r.Stdout, out.String())
}

// writeFormatted assembles one Go fmt verb from the '*'-supplied
// width/precision and applies it. Literal width/precision digits and
// flag characters are scanned past by PrintFmt and not passed here, so
// "%5d" prints like "%d"; hc_print_fmt instead re-splices the original C
// spec text and calls printf, which does apply them.
func writeFormatted(out *strings.Builder, widthFromArg, precisionFromArg bool, width, precision int, verb string, value interface{}) {
	spec := "%"

	if widthFromArg {
		spec += fmt.Sprintf("%d", width)
	}

	if precisionFromArg {
		spec += fmt.Sprintf(".%d", precision)
	}

	spec += verb

	fmt.Fprintf(out, spec, value)
}
