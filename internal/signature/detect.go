package signature

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Package manager marker files, checked in order. Lockfiles beat the bare
// package.json so yarn/pnpm projects are not reported as npm.
var managerMarkers = []struct {
	file    string
	manager string
}{
	{"pnpm-lock.yaml", "pnpm"},
	{"yarn.lock", "yarn"},
	{"package.json", "npm"},
	{"Cargo.toml", "cargo"},
	{"pyproject.toml", "pip"},
	{"requirements.txt", "pip"},
	{"go.mod", "gomod"},
}

// Detect inspects a codebase root and derives its technology profile.
// Ambiguous fields stay Unknown; nothing is guessed.
func Detect(root string) Signature {
	sig := empty()

	for _, m := range managerMarkers {
		if fileExists(filepath.Join(root, m.file)) {
			sig.PackageManager = m.manager
			break
		}
	}

	switch sig.PackageManager {
	case "npm", "yarn", "pnpm":
		detectFromPackageJSON(root, &sig)
	case "cargo":
		sig.Language = "rust"
		detectFromCargoToml(root, &sig)
	case "pip":
		sig.Language = "python"
		detectFromPyproject(root, &sig)
	case "gomod":
		sig.Language = "go"
	}

	if lang := detectLanguageFromFiles(root); lang != Unknown {
		sig.Language = lang
	}

	// Layout conventions beat generic manifest fields: a component directory
	// of .tsx/.jsx files marks a react codebase even without a manifest hit.
	if hasComponentDirectory(root) {
		sig.Framework = "react"
	}

	if features := detectWorkspaces(root); features != "" {
		sig.Description = sig.Describe() + "; " + features
	} else {
		sig.Description = sig.Describe()
	}
	return sig
}

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func detectFromPackageJSON(root string, sig *Signature) {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return
	}

	has := func(name string) bool {
		if _, ok := pkg.Dependencies[name]; ok {
			return true
		}
		_, ok := pkg.DevDependencies[name]
		return ok
	}

	switch {
	case has("next"):
		sig.Framework = "next.js"
	case has("react"):
		sig.Framework = "react"
	case has("vue"):
		sig.Framework = "vue"
	case has("svelte"):
		sig.Framework = "svelte"
	case has("express"):
		sig.Framework = "express"
	}

	switch {
	case has("@mui/material"):
		sig.UILibrary = "@mui/material"
	case has("antd"):
		sig.UILibrary = "antd"
	case has("@chakra-ui/react"):
		sig.UILibrary = "@chakra-ui/react"
	case has("tailwindcss"):
		sig.UILibrary = "tailwindcss"
	}

	switch {
	case has("zod"):
		sig.ValidationLibrary = "zod"
	case has("yup"):
		sig.ValidationLibrary = "yup"
	case has("joi"):
		sig.ValidationLibrary = "joi"
	}

	switch {
	case has("next-auth"):
		sig.AuthLibrary = "next-auth"
	case has("@auth0/auth0-react"), has("@auth0/nextjs-auth0"):
		sig.AuthLibrary = "auth0"
	case has("firebase"):
		sig.AuthLibrary = "firebase"
	case has("passport"):
		sig.AuthLibrary = "passport"
	case has("jsonwebtoken"):
		sig.AuthLibrary = "jsonwebtoken"
	}

	if has("typescript") {
		sig.Language = "typescript"
	} else {
		sig.Language = "javascript"
	}
}

type cargoManifest struct {
	Dependencies map[string]toml.Primitive `toml:"dependencies"`
}

func detectFromCargoToml(root string, sig *Signature) {
	var manifest cargoManifest
	if _, err := toml.DecodeFile(filepath.Join(root, "Cargo.toml"), &manifest); err != nil {
		return
	}
	if _, ok := manifest.Dependencies["axum"]; ok {
		sig.Framework = "axum"
	} else if _, ok := manifest.Dependencies["actix-web"]; ok {
		sig.Framework = "actix-web"
	}
	if _, ok := manifest.Dependencies["serde"]; ok {
		sig.ValidationLibrary = "serde"
	}
}

type pyprojectManifest struct {
	Project struct {
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
}

func detectFromPyproject(root string, sig *Signature) {
	var manifest pyprojectManifest
	if _, err := toml.DecodeFile(filepath.Join(root, "pyproject.toml"), &manifest); err != nil {
		return
	}
	for _, dep := range manifest.Project.Dependencies {
		name := strings.ToLower(strings.FieldsFunc(dep, func(r rune) bool {
			return r == '=' || r == '>' || r == '<' || r == '~' || r == '[' || r == ' '
		})[0])
		switch name {
		case "django":
			sig.Framework = "django"
		case "fastapi":
			sig.Framework = "fastapi"
		case "flask":
			if sig.Framework == Unknown {
				sig.Framework = "flask"
			}
		case "pydantic":
			sig.ValidationLibrary = "pydantic"
		}
	}
}

// detectLanguageFromFiles counts source extensions near the root and returns
// the dominant language, Unknown when nothing is found.
func detectLanguageFromFiles(root string) string {
	counts := map[string]int{}
	dirs := []string{root, filepath.Join(root, "src"), filepath.Join(root, "lib"), filepath.Join(root, "app")}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch filepath.Ext(e.Name()) {
			case ".ts", ".tsx":
				counts["typescript"]++
			case ".js", ".jsx":
				counts["javascript"]++
			case ".py":
				counts["python"]++
			case ".rs":
				counts["rust"]++
			case ".go":
				counts["go"]++
			}
		}
	}

	best, bestCount := Unknown, 0
	// Fixed iteration order keeps detection deterministic on ties.
	for _, lang := range []string{"typescript", "javascript", "python", "rust", "go"} {
		if counts[lang] > bestCount {
			best, bestCount = lang, counts[lang]
		}
	}
	return best
}

// hasComponentDirectory reports whether the codebase follows a React-style
// component directory layout.
func hasComponentDirectory(root string) bool {
	for _, dir := range []string{
		filepath.Join(root, "src", "components"),
		filepath.Join(root, "components"),
	} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ext := filepath.Ext(e.Name())
			if ext == ".tsx" || ext == ".jsx" {
				return true
			}
		}
	}
	return false
}

type pnpmWorkspace struct {
	Packages []string `yaml:"packages"`
}

// detectWorkspaces notes monorepo workspace layouts in the description.
func detectWorkspaces(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "pnpm-workspace.yaml"))
	if err != nil {
		return ""
	}
	var ws pnpmWorkspace
	if err := yaml.Unmarshal(data, &ws); err != nil || len(ws.Packages) == 0 {
		return ""
	}
	return "pnpm workspaces: " + strings.Join(ws.Packages, ", ")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
