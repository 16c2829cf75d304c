package manifest

import (
	"reflect"
	"testing"
)

const docuwikiManifest = `# documentation wiki
services:
  app:
    image: ghcr.io/example/docuwiki:latest
    environment:
      - SERVICE_FQDN_APP
    volumes:
      - x4kw0s_app-db-data:/app/data
      - x4kw0s_app_storage:/app/storage
    depends_on:
      - db
  db:
    image: mariadb:11
    container_name: wiki-database
    volumes:
      - x4kw0s_db-data:/var/lib/mysql
    environment:
      - MYSQL_ROOT_PASSWORD

volumes:
  x4kw0s_app_storage: null
`

func TestParseServiceRoles(t *testing.T) {
	m := Parse(docuwikiManifest)

	if got := m.Order; !reflect.DeepEqual(got, []string{"app", "db"}) {
		t.Fatalf("Order = %v, want [app db]", got)
	}

	app := m.Service("app")
	if app == nil {
		t.Fatal("service app not found")
	}
	if app.Image != "ghcr.io/example/docuwiki:latest" {
		t.Errorf("app image = %q", app.Image)
	}
	if len(app.Volumes) != 2 {
		t.Fatalf("app volumes = %v, want 2", app.Volumes)
	}
	if app.Volumes[0].Name != "x4kw0s_app-db-data" || app.Volumes[0].Path != "/app/data" {
		t.Errorf("first volume = %+v", app.Volumes[0])
	}

	db := m.Service("db")
	if db == nil || db.ContainerName != "wiki-database" {
		t.Errorf("db container_name = %+v", db)
	}
}

func TestParsePropertyKeysAreNotRoles(t *testing.T) {
	m := Parse(docuwikiManifest)
	for _, key := range []string{"environment", "volumes", "depends_on", "labels"} {
		if m.Service(key) != nil {
			t.Errorf("property key %q parsed as a service role", key)
		}
	}
}

func TestParseTopLevelVolumesNotAttributed(t *testing.T) {
	// The root-level volumes: block must not leak into any service.
	m := Parse(docuwikiManifest)
	total := 0
	for _, name := range m.Order {
		total += len(m.Services[name].Volumes)
	}
	if total != 3 {
		t.Errorf("total service volumes = %d, want 3", total)
	}
}

func TestParseSkipsBindMountsAndAnonymousVolumes(t *testing.T) {
	text := `services:
  app:
    volumes:
      - /host/path
      - "named_storage:/data"
`
	m := Parse(text)
	app := m.Service("app")
	if app == nil {
		t.Fatal("service app not found")
	}
	if len(app.Volumes) != 1 || app.Volumes[0].Name != "named_storage" {
		t.Errorf("volumes = %+v, want only named_storage", app.Volumes)
	}
}

func TestParseVolumeListSurvivesLongFormEntry(t *testing.T) {
	text := `services:
  app:
    volumes:
      - type: bind
        source: ./conf
        target: /etc/app
      - app_uploads:/srv/uploads
    image: ghcr.io/example/app
  db:
    image: mariadb:11
`
	m := Parse(text)
	app := m.Service("app")
	if app == nil {
		t.Fatal("service app not found")
	}
	// The long-form entry and its continuation lines are not named volumes
	// and must not end the list early.
	if len(app.Volumes) != 1 || app.Volumes[0].Name != "app_uploads" {
		t.Fatalf("volumes = %+v, want only app_uploads", app.Volumes)
	}
	if app.Volumes[0].Path != "/srv/uploads" {
		t.Errorf("path = %q", app.Volumes[0].Path)
	}
	if app.Image != "ghcr.io/example/app" {
		t.Errorf("image after volume list = %q", app.Image)
	}
	if db := m.Service("db"); db == nil || db.Image != "mariadb:11" {
		t.Errorf("db = %+v", db)
	}
}

func TestParseRepeatedRoleNameRegistersOnce(t *testing.T) {
	text := `services:
  app:
    image: nginx:alpine
    depends_on:
      db:
        condition: service_healthy
  db:
    image: mariadb:11
    volumes:
      - wiki_db_files:/var/lib/data
`
	m := Parse(text)
	if got := m.Order; !reflect.DeepEqual(got, []string{"app", "db"}) {
		t.Fatalf("Order = %v, want [app db]", got)
	}
	db := m.Service("db")
	if db == nil || db.Image != "mariadb:11" {
		t.Fatalf("db = %+v", db)
	}
	if len(db.Volumes) != 1 {
		t.Errorf("db volumes = %+v, want 1", db.Volumes)
	}
}

func TestParseToleratesMixedIndentation(t *testing.T) {
	text := "services:\n\tapp:\n\t\timage: nginx:alpine\n\t\tvolumes:\n\t\t\t- data_uploads:/var/www/uploads\n"
	m := Parse(text)
	app := m.Service("app")
	if app == nil || app.Image != "nginx:alpine" {
		t.Fatalf("tab-indented manifest not parsed: %+v", app)
	}
	if len(app.Volumes) != 1 {
		t.Errorf("volumes = %+v", app.Volumes)
	}
}

func TestParseVolumeModeDiscarded(t *testing.T) {
	text := `services:
  app:
    volumes:
      - data_files:/srv/files:ro
`
	app := Parse(text).Service("app")
	if len(app.Volumes) != 1 {
		t.Fatalf("volumes = %+v", app.Volumes)
	}
	if app.Volumes[0].Path != "/srv/files" {
		t.Errorf("path = %q, want /srv/files", app.Volumes[0].Path)
	}
}

func TestVolumeSuffix(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"x4kw0s_app_storage", "storage"},
		{"uploads", "uploads"},
		{"a_b_media", "media"},
		{"trailing_", "trailing_"},
	}
	for _, tt := range tests {
		if got := (Volume{Name: tt.name}).Suffix(); got != tt.want {
			t.Errorf("Suffix(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestContainerNameFor(t *testing.T) {
	if got := ContainerNameFor(docuwikiManifest, "db"); got != "wiki-database" {
		t.Errorf("ContainerNameFor(db) = %q", got)
	}
	if got := ContainerNameFor(docuwikiManifest, "app"); got != "" {
		t.Errorf("ContainerNameFor(app) = %q, want empty", got)
	}
}
