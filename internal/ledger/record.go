package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// Compilation is one recorded compile.
type Compilation struct {
	Seq         int64      `json:"seq"`
	Fingerprint string     `json:"fingerprint"`
	QueryPath   string     `json:"query_path"`
	Root        string     `json:"root"`
	Mode        string     `json:"mode"`
	Distributed bool       `json:"distributed"`
	CompiledAt  time.Time  `json:"compiled_at"`
	Artifacts   []Artifact `json:"artifacts"`
}

// Artifact is one recorded output file.
type Artifact struct {
	Role   string `json:"role"`
	Path   string `json:"path"`
	Digest string `json:"digest"`
	Size   int64  `json:"size"`
}

// DriftError is returned when an artifact digest differs from the last
// recorded digest for the same fingerprint, mode and role.
type DriftError struct {
	Fingerprint string
	Mode        string
	Distributed bool
	Role        string
	// Seq is the compilation the previous digest was recorded by.
	Seq      int64
	Previous string
	Current  string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("%s artifact of plan %s (mode %s, distributed %t) drifted from compilation %d: digest %s, previously %s",
		e.Role, short(e.Fingerprint), e.Mode, e.Distributed, e.Seq, short(e.Current), short(e.Previous))
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

// Check compares c against the last compilation with the same key. It
// returns a *DriftError for the first artifact whose digest changed.
// Artifacts without a previous record pass.
func (l *Ledger) Check(ctx context.Context, c Compilation) error {
	for _, a := range c.Artifacts {
		var (
			seq    int64
			digest string
		)
		err := l.db.QueryRowContext(ctx, `
			SELECT c.seq, a.digest
			FROM compilations c
			JOIN artifacts a ON a.compilation_seq = c.seq
			WHERE c.fingerprint = ? AND c.mode = ? AND c.distributed = ? AND a.role = ?
			ORDER BY c.seq DESC
			LIMIT 1
		`, c.Fingerprint, c.Mode, c.Distributed, a.Role).Scan(&seq, &digest)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "query previous digest")
		}
		if digest != a.Digest {
			return &DriftError{
				Fingerprint: c.Fingerprint,
				Mode:        c.Mode,
				Distributed: c.Distributed,
				Role:        a.Role,
				Seq:         seq,
				Previous:    digest,
				Current:     a.Digest,
			}
		}
	}
	return nil
}

// Record appends c and returns its seq. c.Seq and c.CompiledAt are
// ignored.
func (l *Ledger) Record(ctx context.Context, c Compilation) (_ int64, rerr error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin")
	}
	defer func() {
		if rerr != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO compilations (fingerprint, query_path, root, mode, distributed, compiled_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.Fingerprint, c.QueryPath, c.Root, c.Mode, c.Distributed, l.now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, errors.Wrap(err, "insert compilation")
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "compilation seq")
	}

	for _, a := range c.Artifacts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO artifacts (compilation_seq, role, path, digest, size)
			VALUES (?, ?, ?, ?, ?)
		`, seq, a.Role, a.Path, a.Digest, a.Size); err != nil {
			return 0, errors.Wrapf(err, "insert %s artifact", a.Role)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit")
	}
	return seq, nil
}

// History returns the last limit compilations, newest first. A limit of
// zero or less returns every compilation.
func (l *Ledger) History(ctx context.Context, limit int) ([]Compilation, error) {
	query := `
		SELECT seq, fingerprint, query_path, root, mode, distributed, compiled_at
		FROM compilations
		ORDER BY seq DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query compilations")
	}
	defer func() { _ = rows.Close() }()

	var out []Compilation
	for rows.Next() {
		var (
			c  Compilation
			at string
		)
		if err := rows.Scan(&c.Seq, &c.Fingerprint, &c.QueryPath, &c.Root, &c.Mode, &c.Distributed, &at); err != nil {
			return nil, errors.Wrap(err, "scan compilation")
		}
		if c.CompiledAt, err = time.Parse(time.RFC3339, at); err != nil {
			return nil, errors.Wrapf(err, "compilation %d timestamp", c.Seq)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate compilations")
	}

	for i := range out {
		arts, err := l.artifacts(ctx, out[i].Seq)
		if err != nil {
			return nil, err
		}
		out[i].Artifacts = arts
	}
	return out, nil
}

func (l *Ledger) artifacts(ctx context.Context, seq int64) ([]Artifact, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT role, path, digest, size
		FROM artifacts
		WHERE compilation_seq = ?
		ORDER BY role ASC COLLATE BINARY
	`, seq)
	if err != nil {
		return nil, errors.Wrap(err, "query artifacts")
	}
	defer func() { _ = rows.Close() }()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Role, &a.Path, &a.Digest, &a.Size); err != nil {
			return nil, errors.Wrap(err, "scan artifact")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate artifacts")
	}
	return out, nil
}
