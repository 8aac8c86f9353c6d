package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cotizador/backend/internal/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersionCmd(t *testing.T) {
	originalVersion := version
	version = "test-version-1.0.0"
	defer func() { version = originalVersion }()

	out, err := execute(t, "version")

	assert.NoError(t, err)
	assert.Contains(t, out, "cotizador version test-version-1.0.0")
}

func TestValidateCmd(t *testing.T) {
	t.Run("prints segment counts", func(t *testing.T) {
		path := writeFile(t, "listado.csv", "Descripcion;Precio Contado;Precio Tarjeta;SEGMENTO\n"+
			"Rosca gas 1/2;100;110;GAS\n"+
			"Rosca gas 3/4;120;130;GAS\n"+
			"Teflon;10;11;\n")

		out, err := execute(t, "validate", "--catalog", path, "--separator", ";")

		require.NoError(t, err)
		assert.Contains(t, out, "3 products in 2 segments")
		assert.Contains(t, out, "(sin segmento)")
		assert.Regexp(t, `GAS\s+2`, out)
	})

	t.Run("custom separator", func(t *testing.T) {
		path := writeFile(t, "listado.csv", "Descripcion,Precio Contado,Precio Tarjeta,Segmento\nRosca,1,2,GAS\n")

		out, err := execute(t, "validate", "--catalog", path, "--separator", ",")

		require.NoError(t, err)
		assert.Contains(t, out, "1 products in 1 segments")
	})

	t.Run("fails on missing columns", func(t *testing.T) {
		path := writeFile(t, "listado.csv", "Descripcion;Precio Contado\nRosca;1\n")

		_, err := execute(t, "validate", "--catalog", path, "--separator", ";")

		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrSchema))
		assert.Contains(t, err.Error(), "Segmento")
	})

	t.Run("fails on missing file", func(t *testing.T) {
		_, err := execute(t, "validate", "--catalog", filepath.Join(t.TempDir(), "nope.csv"), "--separator", ";")

		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("rejects multi character separator", func(t *testing.T) {
		path := writeFile(t, "listado.csv", "x")

		_, err := execute(t, "validate", "--catalog", path, "--separator", ";;")

		assert.Error(t, err)
	})
}

func TestServeCmd_InvalidConfig(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("COTIZADOR_MATCHING_MIN_SCORE", "500")

	_, err := execute(t, "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestServeCmd_SchemaErrorIsFatal(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeFile(t, "listado.csv", "Descripcion;Precio Contado\nRosca;1\n")
	t.Setenv("COTIZADOR_CATALOG_PATH", path)
	t.Setenv("COTIZADOR_SERVER_PORT", "0")

	_, err := execute(t, "serve")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSchema))
}
