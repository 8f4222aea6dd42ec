package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// PGStore persists the inventory in PostgreSQL as three tables.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects, pings and creates the tables if missing.
func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 4
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &PGStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS labs (
	lab_name                     TEXT PRIMARY KEY,
	lab_type                     TEXT NOT NULL,
	description                  TEXT NOT NULL DEFAULT '',
	remote_containerlab_host     TEXT NOT NULL DEFAULT '',
	remote_containerlab_username TEXT NOT NULL DEFAULT '',
	topology_path                TEXT NOT NULL DEFAULT '',
	containerlab_name            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS hosts (
	id         BIGSERIAL PRIMARY KEY,
	lab_name   TEXT NOT NULL REFERENCES labs(lab_name) ON DELETE CASCADE,
	hostname   TEXT NOT NULL,
	ip_address TEXT NOT NULL DEFAULT '',
	network_os TEXT NOT NULL DEFAULT '',
	username   TEXT NOT NULL DEFAULT '',
	password   TEXT NOT NULL DEFAULT '',
	image_type TEXT NOT NULL DEFAULT '',
	console    TEXT NOT NULL DEFAULT '',
	UNIQUE (lab_name, hostname)
);

CREATE TABLE IF NOT EXISTS links (
	seq                   BIGSERIAL PRIMARY KEY,
	id                    TEXT NOT NULL UNIQUE,
	lab_name              TEXT NOT NULL REFERENCES labs(lab_name) ON DELETE CASCADE,
	source_host           TEXT NOT NULL,
	source_interface      TEXT NOT NULL,
	destination_host      TEXT NOT NULL,
	destination_interface TEXT NOT NULL,
	state                 TEXT NOT NULL DEFAULT 'enabled',
	jitter                INTEGER NOT NULL DEFAULT 0 CHECK (jitter >= 0),
	latency               INTEGER NOT NULL DEFAULT 0 CHECK (latency >= 0),
	loss                  INTEGER NOT NULL DEFAULT 0 CHECK (loss >= 0),
	rate                  INTEGER NOT NULL DEFAULT 0 CHECK (rate >= 0),
	corruption            INTEGER NOT NULL DEFAULT 0 CHECK (corruption >= 0),
	UNIQUE (lab_name, source_host, source_interface, destination_host, destination_interface)
);
`

func (s *PGStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Ping checks database connectivity
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

const labColumns = `lab_name, lab_type, description, remote_containerlab_host,
	remote_containerlab_username, topology_path, containerlab_name`

func scanLab(row pgx.Row) (*model.Lab, error) {
	var l model.Lab
	var typ string
	err := row.Scan(&l.Name, &typ, &l.Description, &l.RemoteHost, &l.RemoteUser, &l.TopologyPath, &l.ContainerlabName)
	if err != nil {
		return nil, err
	}
	l.Type = model.LabType(typ)
	return &l, nil
}

func (s *PGStore) GetLab(ctx context.Context, name string) (*model.Lab, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+labColumns+` FROM labs WHERE lab_name = $1`, name)
	l, err := scanLab(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, labNotFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lab: %w", err)
	}
	return l, nil
}

func (s *PGStore) ListLabs(ctx context.Context) ([]*model.Lab, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+labColumns+` FROM labs ORDER BY lab_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list labs: %w", err)
	}
	defer rows.Close()

	var labs []*model.Lab
	for rows.Next() {
		l, err := scanLab(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lab: %w", err)
		}
		labs = append(labs, l)
	}
	return labs, rows.Err()
}

const hostColumns = `hostname, ip_address, network_os, username, password, image_type, console, lab_name`

func scanHost(row pgx.Row) (*model.Host, error) {
	var h model.Host
	err := row.Scan(&h.Hostname, &h.IPAddress, &h.NetworkOS, &h.Username, &h.Password, &h.ImageType, &h.Console, &h.LabName)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *PGStore) GetHost(ctx context.Context, lab, hostname string) (*model.Host, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+hostColumns+` FROM hosts WHERE lab_name = $1 AND hostname = $2`, lab, hostname)
	h, err := scanHost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hostNotFound(lab, hostname)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get host: %w", err)
	}
	return h, nil
}

func (s *PGStore) FindHost(ctx context.Context, lab, fragment string) (*model.Host, error) {
	if fragment == "" {
		return nil, hostNotFound(lab, fragment)
	}
	h, err := s.GetHost(ctx, lab, fragment)
	if err == nil || !errors.Is(err, util.ErrNotFound) {
		return h, err
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+hostColumns+` FROM hosts WHERE lab_name = $1 AND strpos(hostname, $2) > 0 ORDER BY id LIMIT 1`,
		lab, fragment)
	h, err = scanHost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hostNotFound(lab, fragment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find host: %w", err)
	}
	return h, nil
}

func (s *PGStore) ListHosts(ctx context.Context, lab string) ([]*model.Host, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+hostColumns+` FROM hosts WHERE lab_name = $1 ORDER BY id`, lab)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []*model.Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

const linkColumns = `id, source_host, source_interface, destination_host, destination_interface,
	lab_name, state, jitter, latency, loss, rate, corruption`

func scanLink(row pgx.Row) (*model.Link, error) {
	var l model.Link
	var state string
	err := row.Scan(&l.ID, &l.SourceHost, &l.SourceInterface, &l.DestinationHost, &l.DestinationInterface,
		&l.LabName, &state, &l.Jitter, &l.Latency, &l.Loss, &l.Rate, &l.Corruption)
	if err != nil {
		return nil, err
	}
	l.State = model.LinkState(state)
	return &l, nil
}

func (s *PGStore) GetLink(ctx context.Context, lab, id string) (*model.Link, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM links WHERE lab_name = $1 AND id = $2`, lab, id)
	l, err := scanLink(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, linkNotFound(lab, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return l, nil
}

func (s *PGStore) ListLinks(ctx context.Context, lab string) ([]*model.Link, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+linkColumns+` FROM links WHERE lab_name = $1 ORDER BY seq`, lab)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var links []*model.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *PGStore) Begin(_ context.Context) (Tx, error) {
	return &pgTx{store: s}, nil
}

type pgTx struct {
	batch
	store *PGStore
}

// Commit replays the batch inside one database transaction.
func (t *pgTx) Commit(ctx context.Context) error {
	ops, err := t.finish()
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}

	tx, err := t.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, o := range ops {
		if err := execOp(ctx, tx, o); err != nil {
			return fmt.Errorf("%s: %w", o.kind, translatePGError(err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", translatePGError(err))
	}
	return nil
}

func execOp(ctx context.Context, tx pgx.Tx, o op) error {
	switch o.kind {
	case opCreateLab:
		l := o.lab
		_, err := tx.Exec(ctx, `INSERT INTO labs (`+labColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			l.Name, string(l.Type), l.Description, l.RemoteHost, l.RemoteUser, l.TopologyPath, l.ContainerlabName)
		return err

	case opUpdateLab:
		l := o.lab
		tag, err := tx.Exec(ctx, `UPDATE labs SET lab_type = $2, description = $3, remote_containerlab_host = $4,
			remote_containerlab_username = $5, topology_path = $6, containerlab_name = $7 WHERE lab_name = $1`,
			l.Name, string(l.Type), l.Description, l.RemoteHost, l.RemoteUser, l.TopologyPath, l.ContainerlabName)
		if err == nil && tag.RowsAffected() == 0 {
			return labNotFound(l.Name)
		}
		return err

	case opDeleteLab:
		tag, err := tx.Exec(ctx, `DELETE FROM labs WHERE lab_name = $1`, o.name)
		if err == nil && tag.RowsAffected() == 0 {
			return labNotFound(o.name)
		}
		return err

	case opAddHost:
		h := o.host
		_, err := tx.Exec(ctx, `INSERT INTO hosts (`+hostColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			h.Hostname, h.IPAddress, h.NetworkOS, h.Username, h.Password, h.ImageType, h.Console, h.LabName)
		return err

	case opAddLink:
		l := o.link
		_, err := tx.Exec(ctx, `INSERT INTO links (`+linkColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			l.ID, l.SourceHost, l.SourceInterface, l.DestinationHost, l.DestinationInterface,
			l.LabName, string(l.State), l.Jitter, l.Latency, l.Loss, l.Rate, l.Corruption)
		return err

	case opUpdateLink:
		l := o.link
		tag, err := tx.Exec(ctx, `UPDATE links SET state = $3, jitter = $4, latency = $5, loss = $6, rate = $7,
			corruption = $8 WHERE lab_name = $1 AND id = $2`,
			l.LabName, l.ID, string(l.State), l.Jitter, l.Latency, l.Loss, l.Rate, l.Corruption)
		if err == nil && tag.RowsAffected() == 0 {
			return linkNotFound(l.LabName, l.ID)
		}
		return err
	}
	return nil
}

// translatePGError maps constraint violations onto the util sentinels.
func translatePGError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505": // unique_violation
		return fmt.Errorf("%s: %w", pgErr.Detail, util.ErrAlreadyExists)
	case "23503": // foreign_key_violation
		return fmt.Errorf("%s: %w", pgErr.Detail, util.ErrNotFound)
	case "23514": // check_violation
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, util.ErrValidationFailed)
	}
	return err
}
