package backend

// signExtend interprets the low width bits of v as a signed integer.
func signExtend(v uint64, width int) int64 {
	if width >= 64 {
		return int64(v)
	}

	shift := 64 - width
	return int64(v<<shift) >> shift
}

func evalICmp(pred string, lhs, rhs uint64, width int) bool {
	switch pred {
	case "eq":
		return lhs == rhs
	case "ne":
		return lhs != rhs
	case "slt":
		return signExtend(lhs, width) < signExtend(rhs, width)
	case "sle":
		return signExtend(lhs, width) <= signExtend(rhs, width)
	case "sgt":
		return signExtend(lhs, width) > signExtend(rhs, width)
	case "sge":
		return signExtend(lhs, width) >= signExtend(rhs, width)
	case "ult":
		return lhs < rhs
	case "ule":
		return lhs <= rhs
	case "ugt":
		return lhs > rhs
	case "uge":
		return lhs >= rhs
	default:
		return false
	}
}

func evalFCmp(pred string, lhs, rhs float64) bool {
	switch pred {
	case "eq":
		return lhs == rhs
	case "ne":
		return lhs != rhs
	case "lt":
		return lhs < rhs
	case "le":
		return lhs <= rhs
	case "gt":
		return lhs > rhs
	case "ge":
		return lhs >= rhs
	default:
		return false
	}
}

func evalBinOp(op, ty string, lhs, rhs uint64) uint64 {
	if ty == "double" {
		a, b := bitsToFloat64(lhs), bitsToFloat64(rhs)

		switch op {
		case "fadd":
			return float64bits(a + b)
		case "fsub":
			return float64bits(a - b)
		case "fmul":
			return float64bits(a * b)
		case "fdiv":
			if b == 0 {
				return float64bits(0)
			}

			return float64bits(a / b)
		}
	}

	width := intWidthOf(ty)

	switch op {
	case "add":
		return maskWidth(lhs+rhs, width)
	case "sub":
		return maskWidth(lhs-rhs, width)
	case "mul":
		return maskWidth(lhs*rhs, width)
	case "sdiv":
		if rhs == 0 {
			return 0
		}

		return maskWidth(uint64(signExtend(lhs, width)/signExtend(rhs, width)), width)
	case "srem":
		if rhs == 0 {
			return 0
		}

		return maskWidth(uint64(signExtend(lhs, width)%signExtend(rhs, width)), width)
	case "udiv":
		if rhs == 0 {
			return 0
		}

		return maskWidth(lhs/rhs, width)
	case "urem":
		if rhs == 0 {
			return 0
		}

		return maskWidth(lhs%rhs, width)
	case "and":
		return maskWidth(lhs&rhs, width)
	case "or":
		return maskWidth(lhs|rhs, width)
	case "xor":
		return maskWidth(lhs^rhs, width)
	case "shl":
		return maskWidth(lhs<<uint(rhs%64), width)
	case "ashr":
		return maskWidth(uint64(signExtend(lhs, width)>>uint(rhs%64)), width)
	case "lshr":
		return maskWidth(lhs>>uint(rhs%64), width)
	default:
		return 0
	}
}

func maskWidth(v uint64, width int) uint64 {
	if width >= 64 {
		return v
	}

	return v & (uint64(1)<<uint(width) - 1)
}

func evalCast(op, fromTy, toTy string, v uint64) uint64 {
	switch op {
	case "trunc":
		return maskWidth(v, intWidthOf(toTy))
	case "zext":
		return maskWidth(v, intWidthOf(fromTy))
	case "sext":
		return maskWidth(uint64(signExtend(v, intWidthOf(fromTy))), intWidthOf(toTy))
	case "fptosi":
		return uint64(int64(bitsToFloat64(v)))
	case "sitofp":
		return float64bits(float64(signExtend(v, intWidthOf(fromTy))))
	case "ptrtoint", "inttoptr", "bitcast":
		return v
	default:
		return v
	}
}
