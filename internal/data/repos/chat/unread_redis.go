package chat

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/helpdesk-backend/internal/domain"
	"github.com/yungbote/helpdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

// redisUnreadRepo stores one hash per user: field = ticket id, value = count.
type redisUnreadRepo struct {
	rdb    goredis.UniversalClient
	prefix string
	log    *logger.Logger
}

func NewRedisUnreadRepo(rdb goredis.UniversalClient, prefix string, log *logger.Logger) UnreadRepo {
	if prefix == "" {
		prefix = "helpdesk:unread"
	}
	return &redisUnreadRepo{rdb: rdb, prefix: prefix, log: log.With("repo", "RedisUnreadRepo")}
}

func (r *redisUnreadRepo) key(userID uint64) string {
	return fmt.Sprintf("%s:%d", r.prefix, userID)
}

func (r *redisUnreadRepo) Increment(dbc dbctx.Context, userIDs []uint64, ticketID uint64) error {
	if len(userIDs) == 0 {
		return nil
	}
	field := strconv.FormatUint(ticketID, 10)
	seen := make(map[uint64]bool, len(userIDs))
	_, err := r.rdb.TxPipelined(dbc.Ctx, func(p goredis.Pipeliner) error {
		for _, id := range userIDs {
			if id == 0 || seen[id] {
				continue
			}
			seen[id] = true
			p.HIncrBy(dbc.Ctx, r.key(id), field, 1)
		}
		return nil
	})
	return err
}

func (r *redisUnreadRepo) Reset(dbc dbctx.Context, userID, ticketID uint64) error {
	return r.rdb.HDel(dbc.Ctx, r.key(userID), strconv.FormatUint(ticketID, 10)).Err()
}

func (r *redisUnreadRepo) ListForUser(dbc dbctx.Context, userID uint64) ([]*types.UnreadCounter, error) {
	raw, err := r.rdb.HGetAll(dbc.Ctx, r.key(userID)).Result()
	if err != nil {
		return nil, err
	}
	return parseUnreadHash(userID, raw, time.Now().UTC()), nil
}

func parseUnreadHash(userID uint64, raw map[string]string, at time.Time) []*types.UnreadCounter {
	out := make([]*types.UnreadCounter, 0, len(raw))
	for field, val := range raw {
		ticketID, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			continue
		}
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil || n <= 0 {
			continue
		}
		out = append(out, &types.UnreadCounter{UserID: userID, TicketID: ticketID, Count: n, UpdatedAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketID < out[j].TicketID })
	return out
}
