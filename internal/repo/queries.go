package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iermgmt/painel/internal/db"
)

// DBTX é o subconjunto de pgx usado pelas consultas; atendido pelo pool e
// por transações.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries concentra o acesso às tabelas de usuários e tokens.
type Queries struct {
	db   DBTX
	pool *pgxpool.Pool
}

// New cria Queries sobre o pool.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{db: pool, pool: pool}
}

// WithTx devolve Queries ligadas à transação.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx, pool: q.pool}
}

const usuarioColumns = `id, id_number, first_name, last_name, middle_name, email, senha_hash, user_level, status, ativo, criado_em`

func scanUsuario(row pgx.Row) (Usuario, error) {
	var u Usuario
	err := row.Scan(&u.ID, &u.IDNumber, &u.FirstName, &u.LastName, &u.MiddleName, &u.Email, &u.SenhaHash, &u.Role, &u.Status, &u.Ativo, &u.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}
	return u, nil
}

// GetUsuarioByIDNumber busca pelo número de identificação.
func (q *Queries) GetUsuarioByIDNumber(ctx context.Context, idNumber string) (Usuario, error) {
	return scanUsuario(q.db.QueryRow(ctx, `SELECT `+usuarioColumns+` FROM usuarios WHERE id_number = $1`, idNumber))
}

// GetUsuarioByID busca pelo identificador interno.
func (q *Queries) GetUsuarioByID(ctx context.Context, id uuid.UUID) (Usuario, error) {
	return scanUsuario(q.db.QueryRow(ctx, `SELECT `+usuarioColumns+` FROM usuarios WHERE id = $1`, id))
}

// ListUsuarios devolve todos os usuários ordenados por sobrenome.
func (q *Queries) ListUsuarios(ctx context.Context) ([]Usuario, error) {
	rows, err := q.db.Query(ctx, `SELECT `+usuarioColumns+` FROM usuarios ORDER BY last_name, first_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Usuario
	for rows.Next() {
		u, err := scanUsuario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateUsuario insere um usuário e devolve o registro persistido.
func (q *Queries) CreateUsuario(ctx context.Context, arg CreateUsuarioParams) (Usuario, error) {
	u, err := scanUsuario(q.db.QueryRow(ctx, `
        INSERT INTO usuarios (id_number, first_name, last_name, middle_name, email, senha_hash, user_level)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING `+usuarioColumns,
		arg.IDNumber, arg.FirstName, arg.LastName, arg.MiddleName, arg.Email, arg.SenhaHash, arg.Role))
	if err != nil {
		return Usuario{}, mapUniqueViolation(err)
	}
	return u, nil
}

// InsertRefreshToken persiste o hash de um refresh token.
func (q *Queries) InsertRefreshToken(ctx context.Context, arg InsertRefreshTokenParams) (TokenRefresh, error) {
	var t TokenRefresh
	err := q.db.QueryRow(ctx, `
        INSERT INTO tokens_refresh (id, usuario_id, token_hash, expiracao, criado_em)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, usuario_id, token_hash, expiracao, criado_em, revogado
    `, arg.ID, arg.UsuarioID, arg.TokenHash, arg.Expiracao, arg.CriadoEm).Scan(
		&t.ID, &t.UsuarioID, &t.TokenHash, &t.Expiracao, &t.CriadoEm, &t.Revogado,
	)
	return t, err
}

// GetRefreshTokenByHash busca um refresh token pelo hash.
func (q *Queries) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (TokenRefresh, error) {
	var t TokenRefresh
	err := q.db.QueryRow(ctx, `
        SELECT id, usuario_id, token_hash, expiracao, criado_em, revogado
        FROM tokens_refresh
        WHERE token_hash = $1
    `, tokenHash).Scan(&t.ID, &t.UsuarioID, &t.TokenHash, &t.Expiracao, &t.CriadoEm, &t.Revogado)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenRefresh{}, ErrNotFound
		}
		return TokenRefresh{}, err
	}
	return t, nil
}

// RevokeRefreshToken marca o token como revogado.
func (q *Queries) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	cmd, err := q.db.Exec(ctx, `UPDATE tokens_refresh SET revogado = TRUE WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateRefreshToken revoga oldHash e insere o substituto na mesma transação.
func (q *Queries) RotateRefreshToken(ctx context.Context, oldHash string, next InsertRefreshTokenParams) error {
	return db.WithTx(ctx, q.pool, func(ctx context.Context, tx pgx.Tx) error {
		qtx := q.WithTx(tx)
		if err := qtx.RevokeRefreshToken(ctx, oldHash); err != nil {
			return err
		}
		_, err := qtx.InsertRefreshToken(ctx, next)
		return err
	})
}
