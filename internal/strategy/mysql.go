package strategy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"coolify-backup/internal/archive"
	"coolify-backup/internal/envfile"
)

// MySQL dumps every resolved logical database of a MySQL/MariaDB container
// with mysqldump, streamed through zstd.
type MySQL struct{}

var mysqlRoles = []string{"db", "mysql", "mariadb"}

func (MySQL) Kind() Kind { return KindMySQL }

func (MySQL) Probe(ctx context.Context, t *Target) (bool, error) {
	name, ok, err := findRunning(ctx, t, mysqlRoles...)
	if err != nil || !ok {
		return false, err
	}
	return dockerImageIsMySQL(ctx, t, name)
}

func (MySQL) Execute(ctx context.Context, t *Target, outDir string) Result {
	var res Result

	name, ok, err := findRunning(ctx, t, mysqlRoles...)
	if err != nil {
		res.Errs = append(res.Errs, err)
		return res
	}
	if !ok {
		res.Errs = append(res.Errs, fmt.Errorf("no running mysql container for %s", t.Ref.ID))
		return res
	}
	if matched, err := dockerImageIsMySQL(ctx, t, name); err != nil {
		res.Errs = append(res.Errs, err)
		return res
	} else if !matched {
		res.Errs = append(res.Errs, fmt.Errorf("container %s does not run a mysql image", name))
		return res
	}

	user, password := mysqlCredentials(t.Env)
	databases := mysqlDatabases(t)
	if len(databases) == 0 {
		res.Errs = append(res.Errs, fmt.Errorf("no databases resolved for %s", t.Ref.ID))
		return res
	}

	for _, db := range databases {
		dest := filepath.Join(outDir, db+".sql.zst")
		if err := dumpMySQL(ctx, t, name, user, password, db, dest); err != nil {
			fmt.Printf("Warning: mysqldump of %s in %s failed: %v\n", db, name, err)
			os.Remove(dest)
			res.Errs = append(res.Errs, fmt.Errorf("database %s: %w", db, err))
			continue
		}
		fmt.Printf("Dumped database %s from %s\n", db, name)
		res.Payloads = append(res.Payloads, dest)
	}
	return res
}

// Apply streams each dump straight into mysql; the mysqldump format is
// self-sufficient, so no drop/recreate step precedes it.
func (MySQL) Apply(ctx context.Context, t *Target, snapDir string) error {
	name, ok, err := findRunning(ctx, t, mysqlRoles...)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no running mysql container for %s", t.Ref.ID)
	}

	user, password := mysqlCredentials(t.Env)
	dumps, err := filepath.Glob(filepath.Join(snapDir, "*.sql.zst"))
	if err != nil {
		return err
	}
	if len(dumps) == 0 {
		return fmt.Errorf("snapshot %s contains no SQL dumps", snapDir)
	}

	for _, dump := range dumps {
		db := dumpDatabaseName(dump)
		reader, closeFn, err := archive.OpenZst(dump)
		if err != nil {
			return err
		}
		fmt.Printf("Restoring database %s into %s...\n", db, name)
		err = t.Docker.Input(ctx, name, []string{"MYSQL_PWD=" + password}, reader,
			"mysql", "-u", user, db)
		closeFn()
		if err != nil {
			return fmt.Errorf("restore of %s failed: %w", db, err)
		}
	}
	return nil
}

func dumpMySQL(ctx context.Context, t *Target, container, user, password, db, dest string) error {
	w, err := archive.NewZstWriter(dest)
	if err != nil {
		return err
	}
	dumpErr := t.Docker.Output(ctx, container, []string{"MYSQL_PWD=" + password}, w,
		"mysqldump", "--single-transaction", "--quick", "--routines", "--triggers",
		"-u", user, db)
	if closeErr := w.Close(); dumpErr == nil {
		dumpErr = closeErr
	}
	return dumpErr
}

// mysqlCredentials prefers the administrative credential when both it and
// an application credential are present; root guarantees a complete dump.
func mysqlCredentials(env map[string]string) (user, password string) {
	if rootPW, ok := envfile.FirstPresent(env,
		"MYSQL_ROOT_PASSWORD", "MARIADB_ROOT_PASSWORD", "SERVICE_PASSWORD_ROOT"); ok {
		return "root", rootPW
	}
	user, _ = envfile.FirstPresent(env, "MYSQL_USER", "MARIADB_USER", "SERVICE_USER_MYSQL")
	password, _ = envfile.FirstPresent(env, "MYSQL_PASSWORD", "MARIADB_PASSWORD", "SERVICE_PASSWORD_MYSQL")
	if user == "" {
		user = "root"
	}
	return user, password
}

func mysqlDatabases(t *Target) []string {
	explicit := append([]string{}, t.DatabaseOverride...)
	if def, ok := envfile.FirstPresent(t.Env,
		"MYSQL_DATABASE", "MARIADB_DATABASE", "MYSQL_DB"); ok {
		explicit = append(explicit, def)
	}
	return envfile.DatabaseNames(t.Env, explicit...)
}

func dockerImageIsMySQL(ctx context.Context, t *Target, name string) (bool, error) {
	return imageMatches(ctx, t, name, "mysql", "mariadb")
}

func dumpDatabaseName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(".sql.zst")]
}
