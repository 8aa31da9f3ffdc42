package sqlexec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatementsSimple(t *testing.T) {
	stmts := SplitStatements("CREATE SCHEMA stg;\nCREATE SCHEMA dwh;\n")
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE SCHEMA stg", stmts[0])
	assert.Equal(t, "CREATE SCHEMA dwh", stmts[1])
}

func TestSplitStatementsDollarQuotedBody(t *testing.T) {
	script := `
CREATE OR REPLACE FUNCTION security.fn_zone_access(p_departement VARCHAR)
RETURNS BOOLEAN AS $$
DECLARE
    v_count INTEGER;
BEGIN
    SELECT COUNT(*) INTO v_count FROM security.utilisateurs_zones;
    RETURN v_count > 0;
END;
$$ LANGUAGE plpgsql;

GRANT USAGE ON SCHEMA security TO role_consultant;
`
	stmts := SplitStatements(script)
	require.Len(t, stmts, 2, "semicolons inside $$ must not split")
	assert.Contains(t, stmts[0], "RETURN v_count > 0;")
	assert.Contains(t, stmts[1], "GRANT USAGE")
}

func TestSplitStatementsTaggedDollarQuote(t *testing.T) {
	script := `DO $body$ BEGIN PERFORM 1; END; $body$;SELECT 1;`
	stmts := SplitStatements(script)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "PERFORM 1;")
}

func TestSplitStatementsQuotedStrings(t *testing.T) {
	script := `INSERT INTO dwh.dim_geographie (commune_nom) VALUES ('Jeanne d''Arc; ville');
UPDATE dwh.dim_activite SET naf_section_libelle = 'Industrie';`
	stmts := SplitStatements(script)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "d''Arc; ville")
}

func TestSplitStatementsLineComments(t *testing.T) {
	script := `-- schéma de staging; recréé à chaque déploiement
CREATE SCHEMA IF NOT EXISTS stg;
-- fin
`
	stmts := SplitStatements(script)
	require.Len(t, stmts, 1, "comment-only fragments are dropped")
	assert.Contains(t, stmts[0], "CREATE SCHEMA IF NOT EXISTS stg")
}

func TestSplitStatementsNoTrailingSemicolon(t *testing.T) {
	stmts := SplitStatements("SELECT 1")
	require.Len(t, stmts, 1)
	assert.Equal(t, "SELECT 1", stmts[0])
}

func TestListScriptsOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"010_stg.sql", "000_schemas.sql", "notes.txt", "002_facts.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
	}

	scripts, err := ListScripts(dir)
	require.NoError(t, err)
	require.Len(t, scripts, 3)
	assert.Equal(t, "000_schemas.sql", filepath.Base(scripts[0]))
	assert.Equal(t, "002_facts.sql", filepath.Base(scripts[1]))
	assert.Equal(t, "010_stg.sql", filepath.Base(scripts[2]))
}
