package strategy

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"coolify-backup/internal/archive"
	"coolify-backup/internal/envfile"
)

// Postgres dumps every resolved logical database of a Postgres container
// with pg_dump, streamed through zstd. Dumps carry schema and data only;
// the restore path owns database creation.
type Postgres struct{}

var postgresRoles = []string{"db", "postgres", "postgresql", "database"}

func (Postgres) Kind() Kind { return KindPostgres }

func (Postgres) Probe(ctx context.Context, t *Target) (bool, error) {
	name, ok, err := findRunning(ctx, t, postgresRoles...)
	if err != nil || !ok {
		return false, err
	}
	return imageMatches(ctx, t, name, "postgres")
}

func (Postgres) Execute(ctx context.Context, t *Target, outDir string) Result {
	var res Result

	name, ok, err := findRunning(ctx, t, postgresRoles...)
	if err != nil {
		res.Errs = append(res.Errs, err)
		return res
	}
	if !ok {
		res.Errs = append(res.Errs, fmt.Errorf("no running postgres container for %s", t.Ref.ID))
		return res
	}
	if matched, err := imageMatches(ctx, t, name, "postgres"); err != nil {
		res.Errs = append(res.Errs, err)
		return res
	} else if !matched {
		res.Errs = append(res.Errs, fmt.Errorf("container %s does not run a postgres image", name))
		return res
	}

	user, password := postgresCredentials(t.Env)
	databases := postgresDatabases(t)
	if len(databases) == 0 {
		res.Errs = append(res.Errs, fmt.Errorf("no databases resolved for %s", t.Ref.ID))
		return res
	}

	for _, db := range databases {
		dest := filepath.Join(outDir, db+".sql.zst")
		if err := dumpPostgres(ctx, t, name, user, password, db, dest); err != nil {
			fmt.Printf("Warning: pg_dump of %s in %s failed: %v\n", db, name, err)
			os.Remove(dest)
			res.Errs = append(res.Errs, fmt.Errorf("database %s: %w", db, err))
			continue
		}
		fmt.Printf("Dumped database %s from %s\n", db, name)
		res.Payloads = append(res.Payloads, dest)
	}
	return res
}

// Apply drops and recreates each target database before streaming its dump
// in; pg_dump output here has no CREATE DATABASE of its own.
func (Postgres) Apply(ctx context.Context, t *Target, snapDir string) error {
	name, ok, err := findRunning(ctx, t, postgresRoles...)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no running postgres container for %s", t.Ref.ID)
	}

	user, password := postgresCredentials(t.Env)
	env := []string{"PGPASSWORD=" + password}
	dumps, err := filepath.Glob(filepath.Join(snapDir, "*.sql.zst"))
	if err != nil {
		return err
	}
	if len(dumps) == 0 {
		return fmt.Errorf("snapshot %s contains no SQL dumps", snapDir)
	}

	for _, dump := range dumps {
		db := dumpDatabaseName(dump)

		fmt.Printf("Recreating database %s in %s...\n", db, name)
		recreate := []string{
			fmt.Sprintf(`DROP DATABASE IF EXISTS "%s";`, db),
			fmt.Sprintf(`CREATE DATABASE "%s";`, db),
		}
		for _, stmt := range recreate {
			if err := t.Docker.Output(ctx, name, env, io.Discard,
				"psql", "-U", user, "-d", "postgres", "-c", stmt); err != nil {
				return fmt.Errorf("failed to recreate %s: %w", db, err)
			}
		}

		reader, closeFn, err := archive.OpenZst(dump)
		if err != nil {
			return err
		}
		fmt.Printf("Restoring database %s into %s...\n", db, name)
		err = t.Docker.Input(ctx, name, env, reader,
			"psql", "-U", user, "-d", db, "-v", "ON_ERROR_STOP=1")
		closeFn()
		if err != nil {
			return fmt.Errorf("restore of %s failed: %w", db, err)
		}
	}
	return nil
}

func dumpPostgres(ctx context.Context, t *Target, container, user, password, db, dest string) error {
	w, err := archive.NewZstWriter(dest)
	if err != nil {
		return err
	}
	dumpErr := t.Docker.Output(ctx, container, []string{"PGPASSWORD=" + password}, w,
		"pg_dump", "-U", user, db)
	if closeErr := w.Close(); dumpErr == nil {
		dumpErr = closeErr
	}
	return dumpErr
}

func postgresCredentials(env map[string]string) (user, password string) {
	user, _ = envfile.FirstPresent(env, "POSTGRES_USER", "POSTGRESQL_USER", "SERVICE_USER_POSTGRES")
	password, _ = envfile.FirstPresent(env, "POSTGRES_PASSWORD", "POSTGRESQL_PASSWORD", "SERVICE_PASSWORD_POSTGRES")
	if user == "" {
		user = "postgres"
	}
	return user, password
}

func postgresDatabases(t *Target) []string {
	explicit := append([]string{}, t.DatabaseOverride...)
	if def, ok := envfile.FirstPresent(t.Env,
		"POSTGRES_DB", "POSTGRES_DATABASE", "POSTGRESQL_DATABASE"); ok {
		explicit = append(explicit, def)
	}
	return envfile.DatabaseNames(t.Env, explicit...)
}
