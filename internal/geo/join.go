package geo

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hui-cli/internal/model"
)

// ErrUnmatchedBlock marks a count row whose block is missing from the
// crosswalk. The join never drops rows silently.
var ErrUnmatchedBlock = eris.New("geo: block not in crosswalk")

// Join attaches the tract GEOID to every count row. Returns a new slice;
// the input is not modified. Any block absent from the crosswalk aborts
// the join.
func Join(counts []model.UnitCount, cw *Crosswalk) ([]model.UnitCount, error) {
	joined := make([]model.UnitCount, len(counts))
	for i, uc := range counts {
		tract, ok := cw.TractOf(uc.BlockID)
		if !ok {
			return nil, eris.Wrapf(ErrUnmatchedBlock, "block %s", uc.BlockID)
		}
		uc.TractID = tract
		joined[i] = uc
	}
	zap.L().With(zap.String("component", "geo")).Debug("joined counts to tracts",
		zap.Int("rows", len(joined)),
		zap.Int("blocks", cw.Len()),
	)
	return joined, nil
}
