package peer

import (
	"go.uber.org/zap"

	"astroarena/protocol"
	"astroarena/session"
	"astroarena/spawn"
)

// handle 把一条入站事件应用到本地状态。坏载荷记录后跳过，从不中断读协程。
func (c *Client) handle(env protocol.Envelope) {
	if protocol.Relayed(env.Type) && c.SessionID() == "" {
		// 加入被拒期间短暂收到的房间流量
		return
	}
	switch env.Type {
	case protocol.EvConnected:
		if m, ok := decode[protocol.Connected](c, env); ok && c.id == "" {
			c.id = m.PlayerID
			select {
			case c.connected <- struct{}{}:
			default:
			}
		}

	case protocol.EvSessionJoined:
		if m, ok := decode[protocol.SessionJoined](c, env); ok {
			c.enterSession(m)
			c.deliver(reply{joined: m})
		}

	case protocol.EvSessionError:
		if m, ok := decode[protocol.SessionError](c, env); ok {
			c.log.Debug("session error", zap.String("code", m.Code), zap.String("message", m.Message))
			c.deliver(reply{err: session.FromCode(m.Code)})
		}

	case protocol.EvPlayerJoined:
		if m, ok := decode[protocol.PlayerNotice](c, env); ok {
			c.log.Debug("player joined", zap.String("player", m.PlayerID))
			c.replaySpawns()
		}

	case protocol.EvPlayerLeft, protocol.EvPlayerDisconnected:
		if m, ok := decode[protocol.PlayerNotice](c, env); ok {
			c.mirror.RemoveShip(m.PlayerID)
		}

	case protocol.EvGameStarted:
		c.onGameStarted()

	case protocol.EvHostChanged:
		if m, ok := decode[protocol.HostChanged](c, env); ok {
			c.onHostChanged(m)
		}

	case protocol.EvSessionClosed:
		if m, ok := decode[protocol.SessionClosed](c, env); ok {
			c.log.Info("session closed", zap.String("session", m.SessionID), zap.String("reason", m.Reason))
			c.exitSession()
		}

	case protocol.EvPlayerUpdate:
		if m, ok := decode[protocol.PlayerUpdate](c, env); ok {
			c.mirror.ApplyShip(m)
			c.feedHost(m.PlayerID)
		}

	case protocol.EvPlayerShipData:
		if m, ok := decode[protocol.PlayerShipData](c, env); ok {
			c.mirror.ApplyShipData(m)
		}

	case protocol.EvRequestShipData:
		c.sendShipData()

	case protocol.EvGameObjectsUpdate:
		if m, ok := decode[protocol.RawGameObjects](c, env); ok {
			c.feedHost("")
			if c.IsHost() {
				// 迁移瞬间旧 host 的最后一帧，忽略
				return
			}
			res := c.mirror.ApplyObjects(m)
			if res.Skipped > 0 {
				c.log.Debug("snapshot applied with skipped entities", zap.Int("skipped", res.Skipped))
			}
			if m.Round > 0 {
				c.rounds.Follow(m.Round)
			}
		}

	case protocol.EvAsteroidSpawn, protocol.EvMathObjectsSpawn:
		if m, ok := decode[protocol.SpawnRecord](c, env); ok {
			if m.Kind == "" && env.Type == protocol.EvAsteroidSpawn {
				m.Kind = spawn.KindLarge
			}
			if f := c.Field(); f != nil {
				f.Add(m)
			}
			c.feedHost("")
		}

	case protocol.EvObjectsDestroyed:
		if m, ok := decode[protocol.ObjectDestroyed](c, env); ok {
			c.destroyLocal(m.Type, m.ID)
		}

	case protocol.EvShipCollision:
		if m, ok := decode[protocol.ShipCollision](c, env); ok {
			c.destroyLocal(m.ObjectType, m.ObjectID)
		}

	case protocol.EvRoundTransition:
		if m, ok := decode[protocol.RoundTransition](c, env); ok {
			c.feedHost("")
			c.rounds.Follow(m.Round)
		}

	case protocol.EvGameComplete:
		if m, ok := decode[protocol.GameComplete](c, env); ok {
			c.feedHost("")
			if c.rounds.FollowComplete(m.FinalRound) {
				c.log.Info("game complete", zap.Int("rounds", m.FinalRound))
			}
			c.setStarted(false)
		}

	case protocol.EvLivesUpdate:
		if m, ok := decode[protocol.LivesUpdate](c, env); ok {
			c.mirror.SetLives(m.Lives)
		}

	case protocol.EvGameOver:
		if m, ok := decode[protocol.GameOver](c, env); ok {
			c.log.Info("game over", zap.Int("score", m.FinalScore), zap.Int("round", m.Round))
			c.setStarted(false)
		}

	case protocol.EvLevelComplete:
		c.feedHost("")

	case protocol.EvHostHeartbeat:
		if m, ok := decode[protocol.HostHeartbeat](c, env); ok {
			c.feedHost("")
			if m.Round > 0 {
				c.rounds.Follow(m.Round)
			}
		}

	default:
		c.log.Debug("unhandled event", zap.String("event", env.Type))
	}
}

func decode[T any](c *Client, env protocol.Envelope) (T, bool) {
	m, err := protocol.DecodePayload[T](c.codec, env)
	if err != nil {
		c.log.Warn("malformed payload skipped", zap.String("event", env.Type), zap.Error(err))
		return m, false
	}
	return m, true
}

func (c *Client) setStarted(v bool) {
	c.mu.Lock()
	if c.sess != nil {
		c.sess.Started = v
	}
	c.mu.Unlock()
}

// onGameStarted 新对局：清空上一局的实体，host 开始驱动轮次
func (c *Client) onGameStarted() {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return
	}
	c.sess.Started = true
	f := c.field
	c.mu.Unlock()

	// 上一局的驱动任务必须在清场前退出，否则会往新的一局里生成
	c.stopRounds()
	if f != nil {
		f.Clear()
	}
	c.mirror.Reset()
	c.rounds.Reset()
	c.feedHost("")
	if c.IsHost() {
		c.startRounds(false)
	}
}

func (c *Client) onHostChanged(m protocol.HostChanged) {
	c.mu.Lock()
	if c.sess == nil || c.sess.ID != m.SessionID {
		c.mu.Unlock()
		return
	}
	c.sess.HostID = m.HostPlayerID
	dog := c.dog
	c.mu.Unlock()

	c.mirror.RemoveShip(m.PreviousHostID)
	if dog != nil {
		dog.feed()
	}
	if m.HostPlayerID == c.id {
		c.promote()
	}
}
