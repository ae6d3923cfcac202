package binanceclient

import (
	"context"
	"strconv"
	"sync"
	"time"

	"autoCoinBot/internal/domain"
	"autoCoinBot/internal/ports"

	binance "github.com/adshao/go-binance/v2"
)

// tickBuffer sizes the channel between the websocket reader and the scheduler
// loop. When the loop falls behind, older ticks are dropped rather than
// blocking the reader; the loop only ever needs the latest price.
const tickBuffer = 1024

// tickStream is one live combined aggregate-trade subscription.
type tickStream struct {
	ticks    chan *domain.Tick
	stopC    chan struct{}
	stopOnce sync.Once
}

func (s *tickStream) Ticks() <-chan *domain.Tick { return s.ticks }

func (s *tickStream) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopC)
	})
}

// SubscribeTicks opens one combined aggregate-trade subscription covering all
// given symbols. The returned stream's channel is closed when the connection
// is lost; the caller is expected to resubscribe.
func (c *Client) SubscribeTicks(ctx context.Context, symbols []string) (ports.TickStream, error) {
	op := "SubscribeTicks"

	stream := &tickStream{
		ticks: make(chan *domain.Tick, tickBuffer),
		stopC: make(chan struct{}),
	}

	handler := func(event *binance.WsAggTradeEvent) {
		if event == nil {
			return
		}
		price, err := strconv.ParseFloat(event.Price, 64)
		if err != nil {
			c.logger.Warn(ctx, op+": unparseable trade price, skipping tick", map[string]interface{}{
				"symbol": event.Symbol, "price": event.Price,
			})
			return
		}
		tick := &domain.Tick{
			Symbol:    event.Symbol,
			Price:     price,
			Timestamp: time.UnixMilli(event.TradeTime),
		}
		select {
		case stream.ticks <- tick:
		default:
			// Consumer is behind; drop the oldest tick to make room.
			select {
			case <-stream.ticks:
			default:
			}
			select {
			case stream.ticks <- tick:
			default:
			}
		}
	}

	errHandler := func(err error) {
		// The websocket library closes its done channel after a fatal error;
		// classification here is just for logging.
		c.handleError(ctx, err, op+" WebSocket")
	}

	doneC, stopC, err := binance.WsCombinedAggTradeServe(symbols, handler, errHandler)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+": WebSocket connection established", map[string]interface{}{"symbols": symbols})

	// Bridge the subscription lifecycle: a Stop call or context cancellation
	// tears down the socket, and a lost connection closes the tick channel so
	// the consumer sees it.
	go stream.bridge(ctx, doneC, stopC, func() {
		c.logger.Warn(ctx, op+": WebSocket connection closed", map[string]interface{}{"symbols": symbols})
	})

	return stream, nil
}

// bridge waits for the first teardown cause, then closes the tick channel.
// The close happens only after doneC, when the websocket read loop has
// exited; closing earlier would let a still-running handler send on a closed
// channel.
func (s *tickStream) bridge(ctx context.Context, doneC, stopC chan struct{}, onLost func()) {
	defer close(s.ticks)

	select {
	case <-doneC:
		onLost()
		return
	case <-s.stopC:
	case <-ctx.Done():
	}

	select {
	case stopC <- struct{}{}:
	default:
	}
	<-doneC
}
