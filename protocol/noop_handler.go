package protocol

// NoOpHandler implements MessageHandler with no-op methods.
// Embed this and override only the methods you need.
type NoOpHandler struct{}

func (NoOpHandler) HandleLotStart(*Envelope, *LotStart)                   {}
func (NoOpHandler) HandleLotAdvance(*Envelope, *LotAdvance)               {}
func (NoOpHandler) HandleLotFinish(*Envelope, *LotFinish)                 {}
func (NoOpHandler) HandleLotReject(*Envelope, *LotReject)                 {}
func (NoOpHandler) HandleOccupancyAssign(*Envelope, *OccupancyAssign)     {}
func (NoOpHandler) HandleOccupancyRelease(*Envelope, *OccupancyRelease)   {}
func (NoOpHandler) HandleTerminalHeartbeat(*Envelope, *TerminalHeartbeat) {}

// Compile-time check that NoOpHandler implements MessageHandler.
var _ MessageHandler = NoOpHandler{}
