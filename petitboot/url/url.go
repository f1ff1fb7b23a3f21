// Package url implements the bootloader-config URL model of spec.md §4.1:
// parsing "scheme://host[:port]/path" (or a bare path, classified as
// file://) and joining a relative reference against a base URL.
package url

import "strings"

// Scheme is one of the seven recognized schemes, or "file" for anything
// that doesn't match one of the others.
type Scheme string

const (
	SchemeFile  Scheme = "file"
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
	SchemeFTP   Scheme = "ftp"
	SchemeTFTP  Scheme = "tftp"
	SchemeSFTP  Scheme = "sftp"
	SchemeNFS   Scheme = "nfs"
)

var recognizedSchemes = []Scheme{SchemeHTTP, SchemeHTTPS, SchemeFTP, SchemeTFTP, SchemeSFTP, SchemeNFS}

// URL is the parsed form of a bootloader-config location reference.
type URL struct {
	Scheme Scheme
	Full   string
	Host   string
	Port   string
	Path   string
	Dir    string
	File   string
}

// Parse classifies s as one of the seven schemes or, failing that, as a
// bare file path. Leading slash runs in the resulting Path are collapsed
// to one.
func Parse(s string) *URL {
	for _, scheme := range recognizedSchemes {
		prefix := string(scheme) + "://"
		if strings.HasPrefix(s, prefix) {
			rest := s[len(prefix):]
			return parseNonFile(scheme, s, rest)
		}
	}

	return parseFile(s)
}

func parseFile(s string) *URL {
	path := collapseLeadingSlashes(s)
	u := &URL{
		Scheme: SchemeFile,
		Full:   s,
		Path:   path,
	}
	u.Dir, u.File = splitDirFile(path)
	return u
}

func parseNonFile(scheme Scheme, full, rest string) *URL {
	slash := strings.IndexByte(rest, '/')

	var hostport, path string
	if slash < 0 {
		hostport = rest
		path = ""
	} else {
		hostport = rest[:slash]
		path = rest[slash:]
	}

	host, port := hostport, ""
	if idx := strings.IndexByte(hostport, ':'); idx >= 0 {
		host = hostport[:idx]
		port = hostport[idx+1:]
	}

	path = collapseLeadingSlashes(path)

	u := &URL{
		Scheme: scheme,
		Full:   full,
		Host:   host,
		Port:   port,
		Path:   path,
	}
	u.Dir, u.File = splitDirFile(path)
	return u
}

// collapseLeadingSlashes reduces any run of consecutive leading slashes in
// path to a single slash, per spec.md §4.1.
func collapseLeadingSlashes(path string) string {
	i := 0
	for i < len(path) && path[i] == '/' {
		i++
	}

	if i <= 1 {
		return path
	}

	return path[i-1:]
}

// splitDirFile splits path into its directory (up to and including the
// last slash) and file (the remainder, or the whole path if there is no
// slash) components.
func splitDirFile(path string) (dir, file string) {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "", path
	}

	return path[:idx+1], path[idx+1:]
}

// String renders the URL back to its canonical textual form.
func (u *URL) String() string {
	if u == nil {
		return ""
	}

	if u.Scheme == SchemeFile {
		return u.Path
	}

	var b strings.Builder
	b.WriteString(string(u.Scheme))
	b.WriteString("://")
	b.WriteString(u.Host)
	if u.Port != "" {
		b.WriteByte(':')
		b.WriteString(u.Port)
	}

	b.WriteString(u.Path)
	return b.String()
}

// Join resolves ref against base per standard hierarchical rules: an
// absolute path (leading "/") replaces base's path outright; anything else
// is appended to base's directory.
func Join(base *URL, ref string) *URL {
	if base == nil {
		return Parse(ref)
	}

	// A fully-qualified reference (its own scheme) is returned as-is.
	for _, scheme := range recognizedSchemes {
		if strings.HasPrefix(ref, string(scheme)+"://") {
			return Parse(ref)
		}
	}
	if strings.HasPrefix(ref, "file://") {
		return Parse(ref)
	}

	var path string
	if strings.HasPrefix(ref, "/") {
		path = collapseLeadingSlashes(ref)
	} else {
		path = base.Dir + ref
	}

	if base.Scheme == SchemeFile {
		return parseFile(path)
	}

	joined := &URL{
		Scheme: base.Scheme,
		Host:   base.Host,
		Port:   base.Port,
		Path:   path,
	}
	joined.Dir, joined.File = splitDirFile(path)
	joined.Full = joined.String()
	return joined
}
