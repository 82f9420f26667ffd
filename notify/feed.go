package notify

import (
	"context"
	"encoding/json"

	"github.com/mbolis/cerimonial/log"
	"github.com/mbolis/cerimonial/model"
	"github.com/redis/go-redis/v9"
)

const feedPrefix = "questionnaire:changed:"

// Feed carries ResponseChanged events between instances over Redis pub/sub.
type Feed struct {
	rdb *redis.Client
}

func NewFeed(redisAddr string) *Feed {
	return &Feed{redis.NewClient(&redis.Options{Addr: redisAddr})}
}

func (f *Feed) Ping(ctx context.Context) error {
	return f.rdb.Ping(ctx).Err()
}

func (f *Feed) Close() error {
	return f.rdb.Close()
}

func feedChannel(questionnaireID string) string {
	return feedPrefix + questionnaireID
}

func (f *Feed) Publish(ctx context.Context, ev model.ResponseChanged) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, feedChannel(ev.QuestionnaireID), b).Err()
}

// Subscribe delivers changes to one questionnaire until ctx is done, then
// closes the returned channel.
func (f *Feed) Subscribe(ctx context.Context, questionnaireID string) <-chan model.ResponseChanged {
	sub := f.rdb.Subscribe(ctx, feedChannel(questionnaireID))
	out := make(chan model.ResponseChanged)
	go func() {
		defer sub.Close()
		forward(ctx, sub.Channel(), out)
	}()
	return out
}

func forward(ctx context.Context, in <-chan *redis.Message, out chan<- model.ResponseChanged) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			var ev model.ResponseChanged
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warnf("notify.feed.decode: %s", err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
