package repository

import (
	"context"
	"database/sql"
	"fmt"

	"hdf-dwh/internal/domain"
)

// PostgresEtlLogsRepository writes to dwh.log_etl / dwh.log_erreurs.
type PostgresEtlLogsRepository struct {
	db *sql.DB
}

func NewPostgresEtlLogsRepository(db *sql.DB) *PostgresEtlLogsRepository {
	return &PostgresEtlLogsRepository{db: db}
}

var _ EtlLogsRepository = (*PostgresEtlLogsRepository)(nil)

func (r *PostgresEtlLogsRepository) InsertLog(ctx context.Context, entry *domain.LogEntry) error {
	query := `
		INSERT INTO dwh.log_etl
			(etape, table_cible, statut, nb_lignes, duree_secondes, message,
			 utilisateur, cle_naturelle, ancienne_valeur, nouvelle_valeur)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE(NULLIF($7, ''), current_user), $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.Etape,
		entry.TableCible,
		entry.Statut,
		entry.NbLignes,
		entry.DureeSecondes,
		entry.Message,
		entry.Utilisateur,
		nullString(entry.CleNaturelle),
		nullString(entry.AncienneValeur),
		nullString(entry.NouvelleValeur),
	)
	if err != nil {
		return fmt.Errorf("failed to insert etl log: %w", err)
	}
	return nil
}

func (r *PostgresEtlLogsRepository) InsertError(ctx context.Context, entry *domain.ErrorEntry) (int64, error) {
	query := `
		INSERT INTO dwh.log_erreurs (source, type_erreur, message_erreur, stack_trace)
		VALUES ($1, $2, $3, $4)
		RETURNING erreur_id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		entry.Source,
		entry.TypeErreur,
		entry.MessageErreur,
		nullString(entry.StackTrace),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert error log: %w", err)
	}
	return id, nil
}

func (r *PostgresEtlLogsRepository) ResolveError(ctx context.Context, erreurID int64) error {
	query := `
		UPDATE dwh.log_erreurs
		SET est_resolu = TRUE, date_resolution = NOW()
		WHERE erreur_id = $1 AND est_resolu = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, erreurID)
	if err != nil {
		return fmt.Errorf("failed to resolve error %d: %w", erreurID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM dwh.log_erreurs WHERE erreur_id = $1)`, erreurID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check error %d: %w", erreurID, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrAlreadyResolved
	}
	return nil
}

func (r *PostgresEtlLogsRepository) OpenErrors(ctx context.Context) ([]*domain.ErrorEntry, error) {
	query := `
		SELECT erreur_id, date_erreur, source, type_erreur, message_erreur,
		       stack_trace, est_resolu, date_resolution
		FROM dwh.log_erreurs
		WHERE est_resolu = FALSE
		ORDER BY date_erreur DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open errors: %w", err)
	}
	defer rows.Close()

	var entries []*domain.ErrorEntry
	for rows.Next() {
		var e domain.ErrorEntry
		var stack sql.NullString
		var resolved sql.NullTime
		if err := rows.Scan(&e.ErreurID, &e.DateErreur, &e.Source, &e.TypeErreur,
			&e.MessageErreur, &stack, &e.EstResolu, &resolved); err != nil {
			return nil, fmt.Errorf("failed to scan error entry: %w", err)
		}
		e.StackTrace = stringPtr(stack)
		e.DateResolution = timePtr(resolved)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *PostgresEtlLogsRepository) RecentLogs(ctx context.Context, limit int) ([]*domain.LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT log_id, date_execution, etape, table_cible, statut, nb_lignes,
		       duree_secondes, COALESCE(message, ''), utilisateur,
		       cle_naturelle, ancienne_valeur, nouvelle_valeur
		FROM dwh.log_etl
		ORDER BY date_execution DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query etl logs: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		var cle, oldVal, newVal sql.NullString
		if err := rows.Scan(&e.LogID, &e.DateExecution, &e.Etape, &e.TableCible,
			&e.Statut, &e.NbLignes, &e.DureeSecondes, &e.Message, &e.Utilisateur,
			&cle, &oldVal, &newVal); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		e.CleNaturelle = stringPtr(cle)
		e.AncienneValeur = stringPtr(oldVal)
		e.NouvelleValeur = stringPtr(newVal)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
