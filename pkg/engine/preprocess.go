package engine

// kwPrefix marks keyword names rewritten by preprocessSource.
const kwPrefix = "__kw_"

// preprocessSource rewrites description source into plain zygomys:
//
//   - :keyword becomes the string literal "__kw_keyword", so keywords need
//     no global symbols and cannot clash with user variables.
//   - rotate-x becomes rotate_x. zygomys reads a hyphen inside an
//     identifier as subtraction.
//   - ; line comments become // comments.
//
// String literals, double-quoted or backtick-quoted, pass through as is.
func preprocessSource(source string) string {
	r := rewriter{src: []byte(source), out: make([]byte, 0, len(source)+len(source)/4)}
	for r.i < len(r.src) {
		c := r.src[r.i]
		switch {
		case c == '"':
			r.quoted('"', true)
		case c == '`':
			r.quoted('`', false)
		case c == ';':
			r.comment()
		case c == ':' && r.peek(1) == '=':
			r.copyN(2)
		case c == ':' && isLetter(r.peek(1)):
			r.keyword()
		case c == '-' && r.i > 0 && isIdentChar(r.src[r.i-1]) && isLetter(r.peek(1)):
			r.out = append(r.out, '_')
			r.i++
		default:
			r.copyN(1)
		}
	}
	return string(r.out)
}

type rewriter struct {
	src []byte
	out []byte
	i   int
}

func (r *rewriter) peek(n int) byte {
	if r.i+n < len(r.src) {
		return r.src[r.i+n]
	}
	return 0
}

func (r *rewriter) copyN(n int) {
	end := min(r.i+n, len(r.src))
	r.out = append(r.out, r.src[r.i:end]...)
	r.i = end
}

// quoted copies a string literal including its delimiters.
func (r *rewriter) quoted(delim byte, escapes bool) {
	r.copyN(1)
	for r.i < len(r.src) && r.src[r.i] != delim {
		if escapes && r.src[r.i] == '\\' {
			r.copyN(2)
			continue
		}
		r.copyN(1)
	}
	r.copyN(1)
}

func (r *rewriter) comment() {
	r.out = append(r.out, '/', '/')
	for r.i < len(r.src) && r.src[r.i] == ';' {
		r.i++
	}
	for r.i < len(r.src) && r.src[r.i] != '\n' {
		r.copyN(1)
	}
}

func (r *rewriter) keyword() {
	j := r.i + 1
	for j < len(r.src) && isKWChar(r.src[j]) {
		j++
	}
	r.out = append(r.out, '"')
	r.out = append(r.out, kwPrefix...)
	r.out = append(r.out, r.src[r.i+1:j]...)
	r.out = append(r.out, '"')
	r.i = j
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}
