package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"hdf-dwh/internal/domain"
)

// PostgresSecurityRepository implements SecurityRepository against the
// security schema.
type PostgresSecurityRepository struct {
	db *sql.DB
}

func NewPostgresSecurityRepository(db *sql.DB) *PostgresSecurityRepository {
	return &PostgresSecurityRepository{db: db}
}

var _ SecurityRepository = (*PostgresSecurityRepository)(nil)

func (r *PostgresSecurityRepository) Reset(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// FK order: zones reference employes, employes reference agences.
	for _, stmt := range []string{
		`DELETE FROM security.utilisateurs_zones`,
		`DELETE FROM security.employes`,
		`DELETE FROM security.agences`,
		`ALTER SEQUENCE security.utilisateurs_zones_zone_id_seq RESTART WITH 1`,
		`ALTER SEQUENCE security.employes_employe_id_seq RESTART WITH 1`,
		`ALTER SEQUENCE security.agences_agence_id_seq RESTART WITH 1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to reset security tables: %w", err)
		}
	}
	return tx.Commit()
}

func (r *PostgresSecurityRepository) InsertAgences(ctx context.Context, agences []*domain.Agence) (int, error) {
	stmt, err := r.db.PrepareContext(ctx, `
		INSERT INTO security.agences
			(commune_code, ville, departement_code, departement_nom,
			 region, population, taille_agence, nb_collaborateurs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING agence_id
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare agence insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range agences {
		if err := stmt.QueryRowContext(ctx,
			a.CommuneCode, a.Ville, a.DepartementCode, a.DepartementNom,
			a.Region, a.Population, a.TailleAgence, a.NbCollaborateurs,
		).Scan(&a.AgenceID); err != nil {
			return 0, fmt.Errorf("failed to insert agence %s: %w", a.Ville, err)
		}
	}
	return len(agences), nil
}

func (r *PostgresSecurityRepository) InsertEmployes(ctx context.Context, employes []*domain.Employe) (int, error) {
	stmt, err := r.db.PrepareContext(ctx, `
		INSERT INTO security.employes
			(nom, prenom, login_sql, email, poste, niveau_hierarchique,
			 agence_id, departement_code, manager_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING employe_id
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare employe insert: %w", err)
	}
	defer stmt.Close()

	// ids[i] is the database identity of employes[i] once inserted;
	// positional manager references always point backwards in the slice.
	ids := make([]int64, len(employes))
	for i, e := range employes {
		var managerID sql.NullInt64
		if e.ManagerID != nil {
			pos := int(*e.ManagerID)
			if pos < 1 || pos > i {
				return 0, fmt.Errorf("employe %s: manager position %d out of range", e.LoginSQL, pos)
			}
			managerID = sql.NullInt64{Int64: ids[pos-1], Valid: true}
		}
		if err := stmt.QueryRowContext(ctx,
			e.Nom, e.Prenom, e.LoginSQL, e.Email, e.Poste, e.NiveauHierarchique,
			nullInt64(e.AgenceID), nullString(e.DepartementCode), managerID,
		).Scan(&ids[i]); err != nil {
			return 0, fmt.Errorf("failed to insert employe %s: %w", e.LoginSQL, err)
		}
		e.EmployeID = ids[i]
	}
	return len(employes), nil
}

func (r *PostgresSecurityRepository) InsertZones(ctx context.Context, zones []*domain.Zone) (int, error) {
	stmt, err := r.db.PrepareContext(ctx, `
		INSERT INTO security.utilisateurs_zones (login_sql, departement_code)
		VALUES ($1, $2)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare zone insert: %w", err)
	}
	defer stmt.Close()

	for _, z := range zones {
		if _, err := stmt.ExecContext(ctx, z.LoginSQL, nullString(z.DepartementCode)); err != nil {
			return 0, fmt.Errorf("failed to insert zone for %s: %w", z.LoginSQL, err)
		}
	}
	return len(zones), nil
}

func (r *PostgresSecurityRepository) ZonesForLogin(ctx context.Context, login string) ([]*domain.Zone, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT zone_id, login_sql, departement_code
		FROM security.utilisateurs_zones
		WHERE login_sql = $1
	`, login)
	if err != nil {
		return nil, fmt.Errorf("failed to query zones for %s: %w", login, err)
	}
	defer rows.Close()

	var zones []*domain.Zone
	for rows.Next() {
		var z domain.Zone
		var dept sql.NullString
		if err := rows.Scan(&z.ZoneID, &z.LoginSQL, &dept); err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		z.DepartementCode = stringPtr(dept)
		zones = append(zones, &z)
	}
	return zones, rows.Err()
}

func (r *PostgresSecurityRepository) ExistingPrincipals(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT rolname FROM pg_roles WHERE rolcanlogin`)
	if err != nil {
		return nil, fmt.Errorf("failed to list principals: %w", err)
	}
	defer rows.Close()

	principals := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan principal: %w", err)
		}
		principals[name] = true
	}
	return principals, rows.Err()
}

func (r *PostgresSecurityRepository) CreateConsultantUser(ctx context.Context, login, password string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Role names cannot be bound parameters; quote them properly.
	create := fmt.Sprintf(`CREATE ROLE %s LOGIN PASSWORD %s`,
		pq.QuoteIdentifier(login), pq.QuoteLiteral(password))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create user %s: %w", login, err)
	}
	grant := fmt.Sprintf(`GRANT role_consultant TO %s`, pq.QuoteIdentifier(login))
	if _, err := tx.ExecContext(ctx, grant); err != nil {
		return fmt.Errorf("failed to grant role_consultant to %s: %w", login, err)
	}
	return tx.Commit()
}

func (r *PostgresSecurityRepository) Counts(ctx context.Context) (int, int, int, error) {
	var agences, employes, zones int
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM security.agences),
			(SELECT COUNT(*) FROM security.employes),
			(SELECT COUNT(*) FROM security.utilisateurs_zones)
	`).Scan(&agences, &employes, &zones)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count security tables: %w", err)
	}
	return agences, employes, zones, nil
}

func (r *PostgresSecurityRepository) GetRLSMode(ctx context.Context) (string, error) {
	var mode string
	err := r.db.QueryRowContext(ctx,
		`SELECT mode FROM security.parametres_rls LIMIT 1`).Scan(&mode)
	if err != nil {
		if err == sql.ErrNoRows {
			return "OUVERT", nil
		}
		return "", fmt.Errorf("failed to read rls mode: %w", err)
	}
	return mode, nil
}

func (r *PostgresSecurityRepository) SetRLSMode(ctx context.Context, mode string) error {
	if mode != "OUVERT" && mode != "FERME" {
		return fmt.Errorf("invalid rls mode %q", mode)
	}
	_, err := r.db.ExecContext(ctx, `UPDATE security.parametres_rls SET mode = $1`, mode)
	if err != nil {
		return fmt.Errorf("failed to set rls mode: %w", err)
	}
	return nil
}

func (r *PostgresSecurityRepository) SnapshotConnections(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO security.historique_connexions
			(login_sql, heure_connexion, statut_session, poste_client, application)
		SELECT login_sql, heure_connexion, statut_session, poste_client, application
		FROM security.v_connexions_actives
		ON CONFLICT ON CONSTRAINT uq_connexion DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to snapshot connections: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(rows), nil
}

func (r *PostgresSecurityRepository) RecentConnections(ctx context.Context, days int) ([]*domain.Connexion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT connexion_id, login_sql, heure_connexion, statut_session,
		       poste_client, application, snapshot_dt
		FROM security.historique_connexions
		WHERE heure_connexion >= NOW() - ($1 || ' days')::INTERVAL
		ORDER BY heure_connexion DESC
	`, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query connection history: %w", err)
	}
	defer rows.Close()

	var result []*domain.Connexion
	for rows.Next() {
		c := &domain.Connexion{}
		if err := rows.Scan(&c.ConnexionID, &c.LoginSQL, &c.HeureConnexion,
			&c.StatutSession, &c.PosteClient, &c.Application, &c.SnapshotDt); err != nil {
			return nil, fmt.Errorf("failed to scan connection row: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
