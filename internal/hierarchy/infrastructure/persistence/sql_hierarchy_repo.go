package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLHierarchyRepository implements domain.Repository for SQLite and
// PostgreSQL. A tree is stored as one row per node plus assignee and KPI
// link rows; the root row carries the aggregate version.
type SQLHierarchyRepository struct {
	conn database.Connection
}

// NewSQLHierarchyRepository creates a hierarchy repository.
func NewSQLHierarchyRepository(conn database.Connection) *SQLHierarchyRepository {
	return &SQLHierarchyRepository{conn: conn}
}

const nodeColumns = `id, parent_id, kind, position, project_id, title, description, weight,
	progress, status, priority, due_date, supervisor_id, created_by, notes, created_at, updated_at`

// inTx runs fn on the caller's transaction, or on a new one it commits.
func (r *SQLHierarchyRepository) inTx(ctx context.Context, fn func(ex database.Executor) error) error {
	if tx := database.TxFromContext(ctx); tx != nil {
		return fn(tx)
	}
	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Save writes the whole tree. The stored version must match the version
// the tree was loaded with; a successful save increments it.
func (r *SQLHierarchyRepository) Save(ctx context.Context, tree *domain.Tree) error {
	err := r.inTx(ctx, func(ex database.Executor) error {
		var stored int
		err := ex.QueryRow(ctx, `SELECT version FROM hierarchy_nodes WHERE id = ?`+r.conn.Driver().ForUpdate(),
			tree.RootID()).Scan(&stored)
		switch {
		case database.IsNoRows(err):
			if tree.Version() != 0 {
				return fmt.Errorf("milestone %s: %w", tree.RootID(), domain.ErrConcurrentUpdate)
			}
		case err != nil:
			return fmt.Errorf("read version of milestone %s: %w", tree.RootID(), err)
		case stored != tree.Version():
			return fmt.Errorf("milestone %s at version %d, loaded %d: %w",
				tree.RootID(), stored, tree.Version(), domain.ErrConcurrentUpdate)
		}

		for _, id := range tree.RemovedIDs() {
			if err := r.deleteNode(ctx, ex, id); err != nil {
				return err
			}
		}

		next := tree.Version() + 1
		for _, s := range tree.Snapshots() {
			if err := r.upsertNode(ctx, ex, tree.RootID(), s, next); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	tree.ClearRemoved()
	tree.IncrementVersion()
	return nil
}

func (r *SQLHierarchyRepository) upsertNode(ctx context.Context, ex database.Executor, milestoneID uuid.UUID, s domain.NodeSnapshot, version int) error {
	d := r.conn.Driver()
	_, err := ex.Exec(ctx, `INSERT INTO hierarchy_nodes
		(id, milestone_id, `+nodeColumns+`, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			parent_id = excluded.parent_id,
			position = excluded.position,
			title = excluded.title,
			description = excluded.description,
			weight = excluded.weight,
			progress = excluded.progress,
			status = excluded.status,
			priority = excluded.priority,
			due_date = excluded.due_date,
			supervisor_id = excluded.supervisor_id,
			notes = excluded.notes,
			version = excluded.version,
			updated_at = excluded.updated_at`,
		s.ID, milestoneID, nullUUID(s.ParentID), string(s.Kind), s.Position, s.ProjectID,
		s.Title, s.Description, s.Weight, s.Progress, string(s.Status), string(s.Priority),
		d.NullTimeArg(s.DueDate), nullUUID(s.SupervisorID), s.CreatedBy, s.Notes,
		d.TimeArg(s.CreatedAt), d.TimeArg(s.UpdatedAt), version,
	)
	if err != nil {
		return fmt.Errorf("save node %s: %w", s.ID, err)
	}

	if _, err := ex.Exec(ctx, `DELETE FROM task_assignees WHERE task_id = ?`, s.ID); err != nil {
		return fmt.Errorf("clear assignees of %s: %w", s.ID, err)
	}
	for i, a := range s.Assignees {
		docs, err := json.Marshal(a.Documents)
		if err != nil {
			return fmt.Errorf("marshal documents: %w", err)
		}
		var grade sql.NullFloat64
		if a.Grade != nil {
			grade = sql.NullFloat64{Float64: *a.Grade, Valid: true}
		}
		_, err = ex.Exec(ctx, `INSERT INTO task_assignees
			(task_id, user_id, position, status, grade, notes, documents, review_comment, submitted_at, reviewed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, a.UserID, i, string(a.Status), grade, a.Notes, string(docs), a.ReviewComment,
			d.NullTimeArg(a.SubmittedAt), d.NullTimeArg(a.ReviewedAt))
		if err != nil {
			return fmt.Errorf("save assignee %s of %s: %w", a.UserID, s.ID, err)
		}
	}

	if _, err := ex.Exec(ctx, `DELETE FROM node_kpi_links WHERE node_id = ?`, s.ID); err != nil {
		return fmt.Errorf("clear kpi links of %s: %w", s.ID, err)
	}
	for i, l := range s.KPILinks {
		_, err := ex.Exec(ctx, `INSERT INTO node_kpi_links
			(node_id, position, user_id, kpi_doc_id, kpi_index, contribution_weight)
			VALUES (?, ?, ?, ?, ?, ?)`,
			s.ID, i, l.UserID, l.KPIDocID, l.KPIIndex, l.ContributionWeight)
		if err != nil {
			return fmt.Errorf("save kpi link of %s: %w", s.ID, err)
		}
	}
	return nil
}

func (r *SQLHierarchyRepository) deleteNode(ctx context.Context, ex database.Executor, id uuid.UUID) error {
	for _, q := range []string{
		`DELETE FROM task_assignees WHERE task_id = ?`,
		`DELETE FROM node_kpi_links WHERE node_id = ?`,
		`DELETE FROM hierarchy_nodes WHERE id = ?`,
	} {
		if _, err := ex.Exec(ctx, q, id); err != nil {
			return fmt.Errorf("delete node %s: %w", id, err)
		}
	}
	return nil
}

// FindByID loads a milestone tree. Inside a transaction the milestone row
// is locked on PostgreSQL until commit.
func (r *SQLHierarchyRepository) FindByID(ctx context.Context, milestoneID uuid.UUID) (*domain.Tree, error) {
	ex := database.ExecutorFromContext(ctx, r.conn)
	lock := ""
	if database.TxFromContext(ctx) != nil {
		lock = r.conn.Driver().ForUpdate()
	}

	var version int
	err := ex.QueryRow(ctx, `SELECT version FROM hierarchy_nodes WHERE id = ? AND kind = 'milestone'`+lock,
		milestoneID).Scan(&version)
	if database.IsNoRows(err) {
		return nil, fmt.Errorf("milestone %s: %w", milestoneID, domain.ErrNodeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load milestone %s: %w", milestoneID, err)
	}

	snaps, err := r.loadNodes(ctx, ex, milestoneID)
	if err != nil {
		return nil, err
	}
	index := make(map[uuid.UUID]int, len(snaps))
	for i, s := range snaps {
		index[s.ID] = i
	}
	if err := r.loadAssignees(ctx, ex, milestoneID, snaps, index); err != nil {
		return nil, err
	}
	if err := r.loadKPILinks(ctx, ex, milestoneID, snaps, index); err != nil {
		return nil, err
	}
	return domain.RehydrateTree(milestoneID, snaps, version)
}

func (r *SQLHierarchyRepository) loadNodes(ctx context.Context, ex database.Executor, milestoneID uuid.UUID) ([]domain.NodeSnapshot, error) {
	rows, err := ex.Query(ctx, `SELECT `+nodeColumns+` FROM hierarchy_nodes
		WHERE milestone_id = ? ORDER BY position`, milestoneID)
	if err != nil {
		return nil, fmt.Errorf("load nodes of %s: %w", milestoneID, err)
	}
	defer rows.Close()

	var snaps []domain.NodeSnapshot
	for rows.Next() {
		var (
			s                    domain.NodeSnapshot
			parentID, supervisor uuid.NullUUID
			kind, status, prio   string
			due                  database.Timestamp
			created, updated     database.Timestamp
		)
		if err := rows.Scan(&s.ID, &parentID, &kind, &s.Position, &s.ProjectID, &s.Title,
			&s.Description, &s.Weight, &s.Progress, &status, &prio, &due, &supervisor,
			&s.CreatedBy, &s.Notes, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		s.ParentID = parentID.UUID
		s.SupervisorID = supervisor.UUID
		s.Kind = domain.Kind(kind)
		s.Status = domain.Status(status)
		s.Priority = domain.Priority(prio)
		s.DueDate = due.Ptr()
		s.CreatedAt = created.Time
		s.UpdatedAt = updated.Time
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

func (r *SQLHierarchyRepository) loadAssignees(ctx context.Context, ex database.Executor, milestoneID uuid.UUID, snaps []domain.NodeSnapshot, index map[uuid.UUID]int) error {
	rows, err := ex.Query(ctx, `SELECT a.task_id, a.user_id, a.status, a.grade, a.notes, a.documents,
			a.review_comment, a.submitted_at, a.reviewed_at
		FROM task_assignees a JOIN hierarchy_nodes n ON n.id = a.task_id
		WHERE n.milestone_id = ? ORDER BY a.task_id, a.position`, milestoneID)
	if err != nil {
		return fmt.Errorf("load assignees of %s: %w", milestoneID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			taskID              uuid.UUID
			a                   domain.Assignee
			status, docs        string
			grade               sql.NullFloat64
			submitted, reviewed database.Timestamp
		)
		if err := rows.Scan(&taskID, &a.UserID, &status, &grade, &a.Notes, &docs, &a.ReviewComment, &submitted, &reviewed); err != nil {
			return fmt.Errorf("scan assignee: %w", err)
		}
		if err := json.Unmarshal([]byte(docs), &a.Documents); err != nil {
			return fmt.Errorf("decode documents of %s: %w", taskID, err)
		}
		a.Status = domain.CompletionStatus(status)
		if grade.Valid {
			g := grade.Float64
			a.Grade = &g
		}
		a.SubmittedAt = submitted.Ptr()
		a.ReviewedAt = reviewed.Ptr()
		if i, ok := index[taskID]; ok {
			snaps[i].Assignees = append(snaps[i].Assignees, a)
		}
	}
	return rows.Err()
}

func (r *SQLHierarchyRepository) loadKPILinks(ctx context.Context, ex database.Executor, milestoneID uuid.UUID, snaps []domain.NodeSnapshot, index map[uuid.UUID]int) error {
	rows, err := ex.Query(ctx, `SELECT l.node_id, l.user_id, l.kpi_doc_id, l.kpi_index, l.contribution_weight
		FROM node_kpi_links l JOIN hierarchy_nodes n ON n.id = l.node_id
		WHERE n.milestone_id = ? ORDER BY l.node_id, l.position`, milestoneID)
	if err != nil {
		return fmt.Errorf("load kpi links of %s: %w", milestoneID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			nodeID uuid.UUID
			l      domain.KPILink
		)
		if err := rows.Scan(&nodeID, &l.UserID, &l.KPIDocID, &l.KPIIndex, &l.ContributionWeight); err != nil {
			return fmt.Errorf("scan kpi link: %w", err)
		}
		if i, ok := index[nodeID]; ok {
			snaps[i].KPILinks = append(snaps[i].KPILinks, l)
		}
	}
	return rows.Err()
}

// FindByNodeID loads the tree that contains nodeID.
func (r *SQLHierarchyRepository) FindByNodeID(ctx context.Context, nodeID uuid.UUID) (*domain.Tree, error) {
	var milestoneID uuid.UUID
	err := database.ExecutorFromContext(ctx, r.conn).
		QueryRow(ctx, `SELECT milestone_id FROM hierarchy_nodes WHERE id = ?`, nodeID).
		Scan(&milestoneID)
	if database.IsNoRows(err) {
		return nil, fmt.Errorf("node %s: %w", nodeID, domain.ErrNodeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve node %s: %w", nodeID, err)
	}
	return r.FindByID(ctx, milestoneID)
}

// ListByProject loads every milestone of a project, oldest first.
func (r *SQLHierarchyRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Tree, error) {
	ex := database.ExecutorFromContext(ctx, r.conn)
	rows, err := ex.Query(ctx, `SELECT id FROM hierarchy_nodes
		WHERE project_id = ? AND kind = 'milestone' ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list milestones of project %s: %w", projectID, err)
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	trees := make([]*domain.Tree, 0, len(ids))
	for _, id := range ids {
		t, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		trees = append(trees, t)
	}
	return trees, nil
}

// Delete removes a milestone and every node under it.
func (r *SQLHierarchyRepository) Delete(ctx context.Context, milestoneID uuid.UUID) error {
	return r.inTx(ctx, func(ex database.Executor) error {
		res, err := ex.Exec(ctx, `DELETE FROM hierarchy_nodes WHERE id = ? AND kind = 'milestone'`, milestoneID)
		if err != nil {
			return fmt.Errorf("delete milestone %s: %w", milestoneID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("milestone %s: %w", milestoneID, domain.ErrNodeNotFound)
		}
		for _, q := range []string{
			`DELETE FROM task_assignees WHERE task_id IN (SELECT id FROM hierarchy_nodes WHERE milestone_id = ?)`,
			`DELETE FROM node_kpi_links WHERE node_id IN (SELECT id FROM hierarchy_nodes WHERE milestone_id = ?)`,
			`DELETE FROM hierarchy_nodes WHERE milestone_id = ?`,
		} {
			if _, err := ex.Exec(ctx, q, milestoneID); err != nil {
				return fmt.Errorf("delete milestone %s: %w", milestoneID, err)
			}
		}
		return nil
	})
}

func nullUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}
