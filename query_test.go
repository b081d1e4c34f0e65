// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package ardilla

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertStmt(t *testing.T) {
	tests := []struct {
		name      string
		cols      []string
		ignore    bool
		returning bool
		want      string
	}{
		{"plain", []string{"id", "name"}, false, false,
			`INSERT INTO "t" ("id", "name") VALUES (?, ?);`},
		{"ignore", []string{"id"}, true, false,
			`INSERT OR IGNORE INTO "t" ("id") VALUES (?);`},
		{"returning", []string{"id", "name"}, false, true,
			`INSERT INTO "t" ("id", "name") VALUES (?, ?) RETURNING rowid AS __rowid__, *;`},
		{"ignore returning", []string{"name"}, true, true,
			`INSERT OR IGNORE INTO "t" ("name") VALUES (?) RETURNING rowid AS __rowid__, *;`},
		{"default values", nil, false, true,
			`INSERT INTO "t" DEFAULT VALUES RETURNING rowid AS __rowid__, *;`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args := make([]any, len(tc.cols))
			stmt := insertStmt("t", tc.cols, args, tc.ignore, tc.returning)
			assert.Equal(t, tc.want, stmt.Query)
			assert.Equal(t, tc.returning, stmt.Rows)
			assert.Len(t, stmt.Args, len(tc.cols))
		})
	}
}

func TestPointLookupStmt(t *testing.T) {
	stmt := pointLookupStmt("user", []string{"id", "name"}, []any{1, "a"})
	assert.Equal(t, `SELECT rowid AS __rowid__, * FROM "user" WHERE ("id" = ? AND "name" = ?) LIMIT 1;`, stmt.Query)
	assert.Equal(t, []any{1, "a"}, stmt.Args)
	assert.True(t, stmt.Rows)

	stmt = pointLookupStmt("user", nil, nil)
	assert.Equal(t, `SELECT rowid AS __rowid__, * FROM "user" LIMIT 1;`, stmt.Query)
}

func TestFilteredLookupStmt(t *testing.T) {
	stmt, err := filteredLookupStmt("game", nil, nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, `SELECT rowid AS __rowid__, * FROM "game";`, stmt.Query)
	assert.Empty(t, stmt.Args)

	stmt, err = filteredLookupStmt("game", []string{"player"}, []any{"bob"}, []Order{{Column: "score", Direction: "desc"}, Asc("id")}, 2)
	require.NoError(t, err)
	assert.Equal(t, `SELECT rowid AS __rowid__, * FROM "game" WHERE ("player" = ?) ORDER BY "score" DESC, "id" ASC LIMIT ?;`, stmt.Query)
	assert.Equal(t, []any{"bob", 2}, stmt.Args)

	stmt, err = filteredLookupStmt("game", nil, nil, []Order{{Column: "score"}}, 0)
	require.NoError(t, err)
	assert.Equal(t, `SELECT rowid AS __rowid__, * FROM "game" ORDER BY "score" ASC;`, stmt.Query)
}

func TestFilteredLookupStmt_BadDirection(t *testing.T) {
	_, err := filteredLookupStmt("game", nil, nil, []Order{{Column: "score", Direction: "DESC; DROP TABLE game"}}, 0)
	require.ErrorIs(t, err, ErrBadQuery)
}

func TestFilteredLookupStmt_DoesNotAliasArgs(t *testing.T) {
	args := make([]any, 1, 4)
	args[0] = "bob"
	stmt, err := filteredLookupStmt("game", []string{"player"}, args, nil, 5)
	require.NoError(t, err)
	assert.Equal(t, []any{"bob", 5}, stmt.Args)
	assert.Len(t, args, 1)
}

func TestUpsertStmt(t *testing.T) {
	stmt := upsertStmt("t", []string{"rowid", "id", "name"}, nil)
	assert.Equal(t, `INSERT OR REPLACE INTO "t" (rowid, "id", "name") VALUES (?, ?, ?);`, stmt.Query)
	assert.False(t, stmt.Rows)
}

func TestUpdateStmt(t *testing.T) {
	stmt := updateStmt("t", []string{"id", "name"}, []any{1, "a"}, 7)
	assert.Equal(t, `UPDATE "t" SET "id" = ?, "name" = ? WHERE rowid = ?;`, stmt.Query)
	assert.Equal(t, []any{1, "a", int64(7)}, stmt.Args)
}

func TestMatchDeleteStmt(t *testing.T) {
	stmt := matchDeleteStmt("t", []string{"user_id", "item_id"}, []any{1, 2})
	assert.Equal(t, `DELETE FROM "t" WHERE ("user_id" = ? AND "item_id" = ?);`, stmt.Query)
	assert.Equal(t, []any{1, 2}, stmt.Args)
}

func TestDeleteByIdentityStmt(t *testing.T) {
	stmt, err := deleteByIdentityStmt("t", "id", []any{1})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "t" WHERE "id" = ?;`, stmt.Query)
	assert.Equal(t, []any{1}, stmt.Args)

	stmt, err = deleteByIdentityStmt("t", "rowid", []any{int64(1), int64(2), int64(3)})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "t" WHERE rowid IN (?, ?, ?);`, stmt.Query)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, stmt.Args)

	_, err = deleteByIdentityStmt("t", "id", nil)
	require.ErrorIs(t, err, ErrNoOperands)
	require.ErrorIs(t, err, ErrBadQuery)
}

// TestStatements_BindValues checks that hostile values only ever appear as
// parameters, never in the statement text.
func TestStatements_BindValues(t *testing.T) {
	hostile := "x'); DROP TABLE t; --"
	stmts := []Statement{
		insertStmt("t", []string{"name"}, []any{hostile}, false, true),
		pointLookupStmt("t", []string{"name"}, []any{hostile}),
		upsertStmt("t", []string{"name"}, []any{hostile}),
		updateStmt("t", []string{"name"}, []any{hostile}, 1),
		matchDeleteStmt("t", []string{"name"}, []any{hostile}),
	}
	many, err := filteredLookupStmt("t", []string{"name"}, []any{hostile}, nil, 3)
	require.NoError(t, err)
	stmts = append(stmts, many)
	del, err := deleteByIdentityStmt("t", "name", []any{hostile, hostile})
	require.NoError(t, err)
	stmts = append(stmts, del)

	for _, stmt := range stmts {
		assert.NotContains(t, stmt.Query, "DROP")
		assert.Contains(t, stmt.Args, hostile)
	}
}
