package envfile

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestReadMissingFileYieldsEmptyMap(t *testing.T) {
	env, err := Read(filepath.Join(t.TempDir(), "nope", ".env"))
	if err != nil {
		t.Fatalf("Read on missing file: %v", err)
	}
	if len(env) != 0 {
		t.Errorf("env = %v, want empty", env)
	}
}

func TestReadParsesAssignments(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "MYSQL_USER=wiki\nMYSQL_PASSWORD='s3cret'\n# comment\nEMPTY=\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	env, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if env["MYSQL_USER"] != "wiki" {
		t.Errorf("MYSQL_USER = %q", env["MYSQL_USER"])
	}
	if env["MYSQL_PASSWORD"] != "s3cret" {
		t.Errorf("MYSQL_PASSWORD = %q", env["MYSQL_PASSWORD"])
	}
}

func TestFirstPresentPriorityOrder(t *testing.T) {
	env := map[string]string{
		"MARIADB_ROOT_PASSWORD": "from-mariadb",
		"SERVICE_PASSWORD_ROOT": "from-service",
	}

	v, ok := FirstPresent(env, "MYSQL_ROOT_PASSWORD", "MARIADB_ROOT_PASSWORD", "SERVICE_PASSWORD_ROOT")
	if !ok || v != "from-mariadb" {
		t.Errorf("FirstPresent = %q, %v; want from-mariadb", v, ok)
	}

	if _, ok := FirstPresent(env, "POSTGRES_USER"); ok {
		t.Error("FirstPresent found an absent key")
	}
}

func TestFirstPresentSkipsEmptyValues(t *testing.T) {
	env := map[string]string{"MYSQL_USER": "", "MARIADB_USER": "wiki"}
	v, ok := FirstPresent(env, "MYSQL_USER", "MARIADB_USER")
	if !ok || v != "wiki" {
		t.Errorf("FirstPresent = %q, %v; empty values must be skipped", v, ok)
	}
}

func TestDatabaseNamesAggregation(t *testing.T) {
	env := map[string]string{
		"MYSQL_DATABASE":      "a",
		"ANALYTICS_DB":        "b",
		"SERVICE_NAME_DB":     "internal",
		"SERVICE_FQDN_APP_DB": "app.example.com",
		"PMA_DB":              "phpmyadmin",
		"MYSQL_USER":          "wiki",
	}

	got := DatabaseNames(env, "a")
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("DatabaseNames = %v, want [a b]", got)
	}
}

func TestDatabaseNamesExplicitUnion(t *testing.T) {
	env := map[string]string{"APP_DATABASE": "app"}
	got := DatabaseNames(env, "extra", "app", " ")
	if !reflect.DeepEqual(got, []string{"app", "extra"}) {
		t.Errorf("DatabaseNames = %v, want [app extra]", got)
	}
}
