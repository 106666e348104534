package scoring

import (
	"fmt"

	"github.com/Bapt252/Nextvision-sub001/pkg/model"
)

// overqualAlertGap is the level gap at which the penalty escalates to
// an alert.
const overqualAlertGap = 2

// Overqualification returns the multiplicative penalty for a candidate
// sitting above the job's level. Factor 1.0 means no penalty. The bool
// reports whether the gap is wide enough to alert on.
func (s *Scorer) Overqualification(c *model.CandidateProfile, j *model.JobRequirement) (model.Penalty, bool) {
	gap := c.Level.Gap(j.Level)
	if gap <= 0 {
		return model.Penalty{Code: model.PenaltyOverqualification, Factor: 1.0}, false
	}
	idx := gap
	if idx >= len(s.cfg.OverqualPenalties) {
		idx = len(s.cfg.OverqualPenalties) - 1
	}
	p := model.Penalty{
		Code:   model.PenaltyOverqualification,
		Factor: s.cfg.OverqualPenalties[idx],
		Reason: fmt.Sprintf("candidate %s is %d levels above job %s", c.Level, gap, j.Level),
	}
	return p, gap >= overqualAlertGap && p.Factor < 1
}

// SectoralPenalty returns the penalty for an incompatible sector pair.
// Most pairs carry none; listed pairs reuse the table score as the
// factor.
func (s *Scorer) SectoralPenalty(c *model.CandidateProfile, j *model.JobRequirement) (model.Penalty, bool) {
	from, to := normalizeTerm(c.Sector), normalizeTerm(j.Sector)
	score, ok := s.incompat[pairKey(from, to)]
	if !ok {
		return model.Penalty{Code: model.PenaltySectoral, Factor: 1.0}, false
	}
	p := model.Penalty{
		Code:   model.PenaltySectoral,
		Factor: score,
		Reason: fmt.Sprintf("moving from %s to %s rarely converts", from, to),
	}
	return p, true
}
