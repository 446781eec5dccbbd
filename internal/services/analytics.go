package services

import (
	"context"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/repository"
)

// PatientAnalytics summarises student activity on one patient.
type PatientAnalytics struct {
	PatientID         string  `json:"patient_id"`
	Name              string  `json:"patient_name"`
	Ordinal           int     `json:"patient_number"`
	StudentMessages   int64   `json:"student_message_count"`
	AIMessages        int64   `json:"ai_message_count"`
	Accesses          int64   `json:"access_count"`
	AverageScore      float64 `json:"average_score"`
	MasteredPercent   float64 `json:"perfect_score_percentage"`
	CompletionPercent float64 `json:"completion_percentage"`
}

// Analytics aggregates student interactions per patient, in catalog order.
// Instructor enrolments are left out of every figure.
func (s *Scoring) Analytics(ctx context.Context, groupID string) ([]PatientAnalytics, error) {
	var out []PatientAnalytics
	err := s.read(ctx, "group", func(ctx context.Context, st *repository.Store) error {
		if _, err := st.FindGroup(ctx, groupID); err != nil {
			return err
		}
		patients, err := st.ListPatients(ctx, groupID)
		if err != nil {
			return err
		}
		stats, err := st.PatientStatsFor(ctx, groupID, models.EnrolStudent, EventPatientAccessed)
		if err != nil {
			return err
		}
		out = make([]PatientAnalytics, 0, len(patients))
		for _, p := range patients {
			row := PatientAnalytics{PatientID: p.ID, Name: p.Name, Ordinal: p.Ordinal}
			if ps, ok := stats[p.ID]; ok {
				row.StudentMessages = ps.StudentMessages
				row.AIMessages = ps.AIMessages
				row.Accesses = ps.Accesses
				row.AverageScore = ps.AverageScore
				if ps.Interactions > 0 {
					row.MasteredPercent = percent(ps.Mastered, ps.Interactions)
					row.CompletionPercent = percent(ps.Completed, ps.Interactions)
				}
			}
			out = append(out, row)
		}
		return nil
	})
	return out, err
}

func percent(part, whole int64) float64 {
	return float64(part) * 100 / float64(whole)
}
