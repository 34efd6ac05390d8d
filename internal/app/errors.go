package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/haukened/quill/internal/domain"
)

// RekeyError reports a password change that stopped at File. Entries before
// it in enumeration order are already under the new password; File and those
// after it are still under the old one.
type RekeyError struct {
	Processed int
	Total     int
	File      string
	Err       error
}

func (e *RekeyError) Error() string {
	return fmt.Sprintf("rekey stopped at %s after %d of %d entries: %v", e.File, e.Processed, e.Total, e.Err)
}

// Unwrap exposes the cause and, once at least one entry has been rewritten,
// domain.ErrPartialFailure. A failure on the first entry changed nothing.
func (e *RekeyError) Unwrap() []error {
	if e.Processed > 0 {
		return []error{domain.ErrPartialFailure, e.Err}
	}
	return []error{e.Err}
}

// FileError pairs an entry name with the error that hit it.
type FileError struct {
	Name string
	Err  error
}

// MigrateError reports a migration that was rolled back. Failed lists the
// moves that did not happen. RollbackFailed lists files that could not be
// returned to the source and need manual attention.
type MigrateError struct {
	Source         string
	Target         string
	Failed         []FileError
	RollbackFailed []FileError
}

func (e *MigrateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "migrate %s -> %s failed for %d file(s): %s", e.Source, e.Target, len(e.Failed), names(e.Failed))
	if len(e.RollbackFailed) > 0 {
		fmt.Fprintf(&b, "; rollback incomplete for %s, manual recovery required", names(e.RollbackFailed))
	}
	return b.String()
}

// Unwrap exposes domain.ErrPartialFailure and every per-file cause.
func (e *MigrateError) Unwrap() []error {
	errs := []error{domain.ErrPartialFailure}
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

// Unrecoverable reports whether some files were left at the destination.
func (e *MigrateError) Unrecoverable() bool { return len(e.RollbackFailed) > 0 }

func names(fe []FileError) string {
	out := make([]string, len(fe))
	for i, f := range fe {
		out[i] = f.Name
	}
	return strings.Join(out, ", ")
}

// Message shown whenever an entry cannot be decrypted. It never says whether
// the password or the file was at fault.
const decryptMessage = "could not decrypt: check password or file integrity"

// UserMessage renders err for an end user. Authentication failures collapse
// to one fixed message regardless of cause.
func UserMessage(err error) string {
	var (
		rk *RekeyError
		mg *MigrateError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rk):
		if errors.Is(rk.Err, domain.ErrAuthenticationFailed) {
			if rk.Processed == 0 {
				return decryptMessage
			}
			return fmt.Sprintf("password change stopped at %s (%d of %d entries already use the new password): %s", rk.File, rk.Processed, rk.Total, decryptMessage)
		}
		return fmt.Sprintf("password change stopped at %s (%d of %d entries already use the new password)", rk.File, rk.Processed, rk.Total)
	case errors.As(err, &mg):
		msg := fmt.Sprintf("could not move %s; all moved files were returned", names(mg.Failed))
		if mg.Unrecoverable() {
			msg = fmt.Sprintf("could not move %s; these files are stranded in %s and need manual recovery: %s", names(mg.Failed), mg.Target, names(mg.RollbackFailed))
		}
		return msg
	case errors.Is(err, domain.ErrAuthenticationFailed):
		return decryptMessage
	case errors.Is(err, domain.ErrSettingsNotPersisted):
		return "entries were moved but the new location could not be saved; pass the new directory explicitly until it is saved"
	case errors.Is(err, domain.ErrNotFound):
		return "entry not found"
	case errors.Is(err, domain.ErrAlreadyExists):
		return "an entry for that day already exists"
	case errors.Is(err, domain.ErrInvalidTarget):
		return "the target directory cannot be inside the journal directory, or contain it"
	case errors.Is(err, domain.ErrInvalidFileName):
		return "not a valid entry name"
	case errors.Is(err, domain.ErrInvalidDate):
		return "not a valid date (expected YYYY-MM-DD)"
	default:
		return err.Error()
	}
}
