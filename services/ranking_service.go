package services

import (
	"sort"
	"time"

	"territory-challenge-system/models"
)

// RankedUser is one computed ranking entry. Rankings are recomputed on
// every read from current territory data and never persisted.
type RankedUser struct {
	Rank        int    `json:"rank"`
	Nickname    string `json:"nickname"`
	Score       int64  `json:"score"`
	PicturePath string `json:"picture_path,omitempty"`
}

// RankingService computes ordered, tie-broken rankings over territory
// data. It holds no DB handle of its own; all reads go through the store.
type RankingService struct {
	Store TerritoryStore
}

func NewRankingService(store TerritoryStore) *RankingService {
	return &RankingService{Store: store}
}

// ChallengeRanking scores every member over [started, ended) under the
// challenge's scoring rule and returns the dense-ranked result. Members
// with no activity in the window score 0 and sort after all scored
// members.
func (r *RankingService) ChallengeRanking(members []models.User, started, ended time.Time, challengeType models.ChallengeType) ([]RankedUser, error) {
	rankings := make([]RankedUser, 0, len(members))

	for _, member := range members {
		var score int64
		switch challengeType {
		case models.TypeAccumulate:
			count, err := r.Store.ClaimEventCount(member.ID, started, ended)
			if err != nil {
				return nil, err
			}
			score = count
		default: // WIDEN
			cells, err := r.Store.DistinctCells(member.ID, started, ended)
			if err != nil {
				return nil, err
			}
			score = int64(len(cells))
		}
		rankings = append(rankings, RankedUser{
			Nickname:    member.Nickname,
			Score:       score,
			PicturePath: member.PicturePath,
		})
	}

	rankDense(rankings)
	return rankings, nil
}

// UserRank returns a single member's entry from the identical sorted
// computation; it is never a separate shortcut.
func (r *RankingService) UserRank(rankings []RankedUser, nickname string) (RankedUser, error) {
	for _, entry := range rankings {
		if entry.Nickname == nickname {
			return entry, nil
		}
	}
	return RankedUser{}, newChallengeError(CodeMembershipNotFound, nickname)
}

// rankDense sorts by score descending and assigns compressed ranks: tied
// scores share a rank and the next distinct score takes previousRank+1,
// never skipping rank numbers by tie-group size. Equal scores order by
// nickname so output is deterministic.
func rankDense(rankings []RankedUser) {
	sort.SliceStable(rankings, func(i, j int) bool {
		if rankings[i].Score != rankings[j].Score {
			return rankings[i].Score > rankings[j].Score
		}
		return rankings[i].Nickname < rankings[j].Nickname
	})

	for i := range rankings {
		if i == 0 {
			rankings[i].Rank = 1
			continue
		}
		if rankings[i].Score == rankings[i-1].Score {
			rankings[i].Rank = rankings[i-1].Rank
		} else {
			rankings[i].Rank = rankings[i-1].Rank + 1
		}
	}
}
