package core

// Allocation-light integer formatting for debug output on targets where
// pulling in strconv/fmt is too heavy.

// itoa converts int to string
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	if n < 0 {
		return "-" + u64toa(uint64(-n))
	}
	return u64toa(uint64(n))
}

// u64toa converts uint64 to string
func u64toa(n uint64) string {
	if n == 0 {
		return "0"
	}

	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}
