package signature

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DhavalSuthar-24/miow-context-master/internal/mioerr"
	"github.com/DhavalSuthar-24/miow-context-master/internal/slogutil"
	"github.com/DhavalSuthar-24/miow-context-master/internal/storage"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDetectReactNpmProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{
		"dependencies": {"react": "^18.0.0", "zod": "^3.0.0", "next-auth": "^4.0.0"},
		"devDependencies": {"typescript": "^5.0.0", "tailwindcss": "^3.0.0"}
	}`)
	writeFile(t, root, "src/components/Button.tsx", "export const Button = () => <button/>;")

	sig := Detect(root)
	require.Equal(t, "react", sig.Framework)
	require.Equal(t, "npm", sig.PackageManager)
	require.Equal(t, "typescript", sig.Language)
	require.Equal(t, "tailwindcss", sig.UILibrary)
	require.Equal(t, "zod", sig.ValidationLibrary)
	require.Equal(t, "next-auth", sig.AuthLibrary)
}

func TestComponentDirectoryBeatsMissingManifest(t *testing.T) {
	root := t.TempDir()
	// No manifest at all, only the layout convention.
	writeFile(t, root, "components/Card.jsx", "export const Card = () => null;")

	sig := Detect(root)
	require.Equal(t, "react", sig.Framework)
	require.Equal(t, Unknown, sig.PackageManager)
}

func TestDetectAmbiguousFieldsStayUnknown(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"dependencies": {"lodash": "^4.0.0"}}`)

	sig := Detect(root)
	require.Equal(t, Unknown, sig.Framework)
	require.Equal(t, Unknown, sig.UILibrary)
	require.Equal(t, Unknown, sig.ValidationLibrary)
	require.Equal(t, Unknown, sig.AuthLibrary)
}

func TestDetectLockfileBeatsPackageJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{}`)
	writeFile(t, root, "pnpm-lock.yaml", "lockfileVersion: '9.0'\n")

	sig := Detect(root)
	require.Equal(t, "pnpm", sig.PackageManager)
}

func TestDetectCargoProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Cargo.toml", "[package]\nname = \"svc\"\n\n[dependencies]\naxum = \"0.7\"\nserde = \"1\"\n")
	writeFile(t, root, "src/main.rs", "fn main() {}")

	sig := Detect(root)
	require.Equal(t, "cargo", sig.PackageManager)
	require.Equal(t, "rust", sig.Language)
	require.Equal(t, "axum", sig.Framework)
}

func TestDetectPnpmWorkspaces(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pnpm-lock.yaml", "lockfileVersion: '9.0'\n")
	writeFile(t, root, "pnpm-workspace.yaml", "packages:\n  - 'apps/*'\n  - 'packages/*'\n")

	sig := Detect(root)
	require.Contains(t, sig.Description, "pnpm workspaces: apps/*, packages/*")
}

func TestFingerprintStableAndContentSensitive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.ts", "export const a = 1;")
	writeFile(t, root, "src/b.ts", "export const b = 2;")

	fp1, err := Fingerprint(root)
	require.NoError(t, err)
	fp2, err := Fingerprint(root)
	require.NoError(t, err)
	require.Equal(t, fp1, fp2)

	writeFile(t, root, "src/a.ts", "export const a = 99;")
	fp3, err := Fingerprint(root)
	require.NoError(t, err)
	require.NotEqual(t, fp1, fp3)
}

func TestResolveCachesUntilFingerprintChanges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"dependencies": {"react": "^18.0.0"}}`)

	db, err := storage.Open(t.TempDir(), slogutil.NewDiscardLogger())
	require.NoError(t, err)
	defer db.Close()
	r := NewResolver(db, slogutil.NewDiscardLogger())

	sig1, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, "react", sig1.Framework)

	// Unchanged content resolves from cache to the identical signature.
	sig2, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, sig1, sig2)

	// A content change invalidates the cache.
	writeFile(t, root, "package.json", `{"dependencies": {"vue": "^3.0.0"}}`)
	sig3, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, "vue", sig3.Framework)
}

func TestResolveUnreadableRootIsIOError(t *testing.T) {
	db, err := storage.Open(t.TempDir(), slogutil.NewDiscardLogger())
	require.NoError(t, err)
	defer db.Close()
	r := NewResolver(db, slogutil.NewDiscardLogger())

	_, err = r.Resolve(context.Background(), filepath.Join(t.TempDir(), "does-not-exist"))
	require.True(t, mioerr.Is(err, mioerr.CodeIO))
}
