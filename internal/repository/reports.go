package repository

import (
	"context"

	"github.com/zaqqye/simlab_backend/internal/models"
)

// StudentInteractions lists the principal's interactions in the group in patient order.
func (s *Store) StudentInteractions(ctx context.Context, groupID, principalID string) ([]models.Interaction, error) {
	var rows []models.Interaction
	err := s.conn(ctx).Table("student_interactions AS i").
		Select("i.*").
		Joins("JOIN enrolments e ON e.id = i.enrolment_id").
		Joins("JOIN patients p ON p.id = i.patient_id").
		Where("e.group_id = ? AND e.principal_id = ?", groupID, principalID).
		Order("p.ordinal ASC").Order("p.name ASC").
		Scan(&rows).Error
	return rows, err
}

// PatientStats aggregates one patient's interactions over a single enrolment kind.
type PatientStats struct {
	PatientID       string
	Interactions    int64
	Mastered        int64
	Completed       int64
	AverageScore    float64
	StudentMessages int64
	AIMessages      int64
	Accesses        int64
}

// PatientStatsFor returns stats keyed by patient id. Patients without any
// interaction of kind are absent.
func (s *Store) PatientStatsFor(ctx context.Context, groupID string, kind models.EnrolKind, accessEvent string) (map[string]*PatientStats, error) {
	out := map[string]*PatientStats{}
	get := func(id string) *PatientStats {
		st, ok := out[id]
		if !ok {
			st = &PatientStats{PatientID: id}
			out[id] = st
		}
		return st
	}

	var scores []struct {
		PatientID    string
		Interactions int64
		Mastered     int64
		Completed    int64
		AverageScore float64
	}
	err := s.conn(ctx).Raw(`
		SELECT i.patient_id,
			COUNT(*) AS interactions,
			SUM(CASE WHEN i.score = ? THEN 1 ELSE 0 END) AS mastered,
			SUM(CASE WHEN i.completed THEN 1 ELSE 0 END) AS completed,
			AVG(i.score) AS average_score
		FROM student_interactions i
		JOIN enrolments e ON e.id = i.enrolment_id
		WHERE e.group_id = ? AND e.kind = ?
		GROUP BY i.patient_id`, models.ScoreMastered, groupID, kind).Scan(&scores).Error
	if err != nil {
		return nil, err
	}
	for _, r := range scores {
		st := get(r.PatientID)
		st.Interactions, st.Mastered, st.Completed, st.AverageScore = r.Interactions, r.Mastered, r.Completed, r.AverageScore
	}

	var messages []struct {
		PatientID       string
		StudentMessages int64
		AIMessages      int64 `gorm:"column:ai_messages"`
	}
	err = s.conn(ctx).Raw(`
		SELECT i.patient_id,
			SUM(CASE WHEN m.sender = ? THEN 1 ELSE 0 END) AS student_messages,
			SUM(CASE WHEN m.sender = ? THEN 1 ELSE 0 END) AS ai_messages
		FROM messages m
		JOIN sessions s ON s.id = m.session_id
		JOIN student_interactions i ON i.id = s.interaction_id
		JOIN enrolments e ON e.id = i.enrolment_id
		WHERE e.group_id = ? AND e.kind = ?
		GROUP BY i.patient_id`, models.SenderStudent, models.SenderAI, groupID, kind).Scan(&messages).Error
	if err != nil {
		return nil, err
	}
	for _, r := range messages {
		st := get(r.PatientID)
		st.StudentMessages, st.AIMessages = r.StudentMessages, r.AIMessages
	}

	var accesses []struct {
		PatientID string
		Accesses  int64
	}
	err = s.conn(ctx).Raw(`
		SELECT l.patient_id, COUNT(*) AS accesses
		FROM user_engagement_log l
		JOIN enrolments e ON e.principal_id = l.principal_id AND e.group_id = l.group_id
		WHERE l.group_id = ? AND l.event_type = ? AND e.kind = ? AND l.patient_id IS NOT NULL
		GROUP BY l.patient_id`, groupID, accessEvent, kind).Scan(&accesses).Error
	if err != nil {
		return nil, err
	}
	for _, r := range accesses {
		get(r.PatientID).Accesses = r.Accesses
	}
	return out, nil
}
