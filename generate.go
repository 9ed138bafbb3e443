//go:generate go run ./internal/tools/versiongen -out VERSION

package studiosync
