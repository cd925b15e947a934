package linker

import (
	"fmt"

	"github.com/package-linker/internal/object"
)

// Severity of a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// ImportErrorKind classifies an unresolved import.
type ImportErrorKind string

const (
	KindMissing            ImportErrorKind = "missing"
	KindPrivate            ImportErrorKind = "private"
	KindRedirectorMismatch ImportErrorKind = "redirector-mismatch"
	KindCircularRedirect   ImportErrorKind = "circular-redirect"
	KindBadOuter           ImportErrorKind = "bad-outer"
)

// Diagnostic is one problem met while loading a package. Failed imports
// and exports degrade to nil references and leave a diagnostic behind.
type Diagnostic struct {
	Severity Severity
	// Code is an error code from pkg/errors, empty for plain warnings.
	Code    string
	Kind    ImportErrorKind
	Package string
	Object  string
	Message string
}

func (d Diagnostic) String() string {
	tag := ""
	if d.Kind != "" {
		tag = " [" + string(d.Kind) + "]"
	}
	if d.Object == "" {
		return fmt.Sprintf("%s %s%s: %s", d.Severity, d.Package, tag, d.Message)
	}
	return fmt.Sprintf("%s %s%s: %s: %s", d.Severity, d.Package, tag, d.Object, d.Message)
}

// Listener receives loader notifications.
type Listener interface {
	// RedirectorFollowed is called when a reference from packageName was
	// resolved through an object redirector.
	RedirectorFollowed(packageName string, redirector *object.Object)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(packageName string, redirector *object.Object)

// RedirectorFollowed implements Listener.
func (f ListenerFunc) RedirectorFollowed(packageName string, redirector *object.Object) {
	f(packageName, redirector)
}

func (l *Linker) report(d Diagnostic) {
	d.Package = l.pkgName
	l.diags = append(l.diags, d)

	log := l.logger
	if d.Kind != "" {
		log = log.WithField("kind", string(d.Kind))
	}
	switch {
	case d.Severity == SeverityError:
		log.Error("%s", d.String())
	case l.flags&LoadNoWarn == 0:
		log.Warn("%s", d.String())
	}
}

func (l *Linker) warn(objectName, format string, args ...any) {
	l.report(Diagnostic{Severity: SeverityWarning, Object: objectName, Message: fmt.Sprintf(format, args...)})
}

// Diagnostics returns the problems recorded so far.
func (l *Linker) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(l.diags))
	copy(out, l.diags)
	return out
}

// CountDiagnostics returns how many diagnostics carry code.
func (l *Linker) CountDiagnostics(code string) int {
	n := 0
	for _, d := range l.diags {
		if d.Code == code {
			n++
		}
	}
	return n
}
