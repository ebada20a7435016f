package zfile

import "os"

// openMode is the parsed form of an open-mode string. The grammar is
// parsed exactly once, at the Open/OpenFd boundary.
type openMode struct {
	kind   modeKind
	append bool        // write mode with the cursor at end-of-file
	level  int         // gzip compression level, 0 = uncompressed
	perm   os.FileMode // permissions for created files
}

// parseOpenMode parses "r | w[1-9] | a | s", with an optional "m###"
// octal permission suffix on the write and append forms. Anything
// outside the grammar is rejected.
func parseOpenMode(mode string) (openMode, error) {
	om := openMode{perm: 0o664}

	if mode == "" {
		return om, ErrInvalidMode
	}

	rest := mode[1:]
	switch mode[0] {
	case 'r':
		om.kind = modeRead
	case 's':
		om.kind = modeSocket
	case 'a':
		om.kind = modeWrite
		om.append = true
	case 'w':
		om.kind = modeWrite
		if rest != "" && rest[0] >= '1' && rest[0] <= '9' {
			om.level = int(rest[0] - '0')
			rest = rest[1:]
		}
	default:
		return om, ErrInvalidMode
	}

	if rest == "" {
		return om, nil
	}

	// Only write and append modes take a permission suffix.
	if om.kind != modeWrite || rest[0] != 'm' || len(rest) < 2 {
		return om, ErrInvalidMode
	}

	perm := os.FileMode(0)
	for _, c := range rest[1:] {
		if c < '0' || c > '7' {
			return om, ErrInvalidMode
		}
		perm = perm<<3 | os.FileMode(c-'0')
	}
	om.perm = perm & os.ModePerm

	return om, nil
}
