package sms

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"unicode/utf16"

	smpp "github.com/CodeMonkeyKevin/smpp34"
	"github.com/dilshat/birthday-sender/util"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	//data_coding values
	ENCODING_DEFAULT  = 0x00
	ENCODING_ISO10646 = 0x08

	//short_message sizes in bytes
	maxAsciiLen  = 160
	asciiPartLen = 153
	maxUcs2Len   = 140
	ucs2PartLen  = 134
	maxParts     = 255
)

type RateLimiter interface {
	// Wait blocks until the limiter permits an event to happen.
	Wait(ctx context.Context) error
}

type TransceiverWrapper interface {
	Unbind() error
	Close()
	Read() (smpp.Pdu, error)
	SubmitSmEncoded(sourceAddr, destinationAddr string, shortMessage []byte, params *smpp.Params) (seq uint32, err error)
	DeliverSmResp(seq uint32, status smpp.CMDStatus) error
}

type TransceiverWrapperFactory interface {
	GetTransceiver(host string, port int, eli int, bindParams smpp.Params) (TransceiverWrapper, error)
}

type transceiverWrapperFactory struct {
}

type transceiverWrapper struct {
	tr *smpp.Transceiver
}

func (t *transceiverWrapper) Unbind() error {
	return t.tr.Unbind()
}

func (t *transceiverWrapper) Close() {
	t.tr.Close()
}

func (t *transceiverWrapper) Read() (smpp.Pdu, error) {
	return t.tr.Read()
}

func (t *transceiverWrapper) SubmitSmEncoded(sourceAddr, destinationAddr string, shortMessage []byte, params *smpp.Params) (seq uint32, err error) {
	return t.tr.SubmitSmEncoded(sourceAddr, destinationAddr, shortMessage, params)
}

func (t *transceiverWrapper) DeliverSmResp(seq uint32, status smpp.CMDStatus) error {
	return t.tr.DeliverSmResp(seq, status)
}

func (t *transceiverWrapperFactory) GetTransceiver(host string, port int, eli int, bindParams smpp.Params) (TransceiverWrapper, error) {
	tr, err := smpp.NewTransceiver(host, port, eli, bindParams)
	if err != nil {
		return nil, err
	}
	return &transceiverWrapper{tr: tr}, nil
}

// SubmitResult is the outcome of a submit_sm reported by the SMSC
type SubmitResult struct {
	Seq    uint32
	Status uint32
}

type SmppClient interface {
	Connect() error
	Disconnect()
	Reconnect() error
	IsConnected() bool
	//SendMessage submits the text, split into concatenated parts when it does not fit one submit_sm,
	//and returns the sequence number of the last submit_sm
	SendMessage(ctx context.Context, from, phone, text string) (uint32, error)
	//ReadPacket reads one PDU; it returns a result only for submit_sm_resp
	ReadPacket() (*SubmitResult, error)
}

type smppClient struct {
	smscIp           string
	smscPort         int
	smscAccount      string
	smscPassword     string
	smscEnqLnkIntrvl int

	connected int32

	//mu guards transceiver, which Connect replaces while the reader and senders use it
	mu                 sync.Mutex
	transceiver        TransceiverWrapper //*smpp.Transceiver
	transceiverFactory TransceiverWrapperFactory
	rateLimiter        RateLimiter
}

func NewClient(smscIp string, smscPort int, smscAccount, smscPassword string, smscEnqLnkIntrvl, tps int) SmppClient {
	return &smppClient{
		smscIp:             smscIp,
		smscPort:           smscPort,
		smscAccount:        smscAccount,
		smscPassword:       smscPassword,
		smscEnqLnkIntrvl:   smscEnqLnkIntrvl,
		rateLimiter:        rate.NewLimiter(rate.Limit(tps), 1),
		transceiverFactory: &transceiverWrapperFactory{},
	}
}

func (c *smppClient) Disconnect() {
	defer func() {
		r := recover()
		if r != nil {
			zap.L().Error("Recovered in Disconnect", zap.Any("panic", r))
		}
		atomic.StoreInt32(&c.connected, 0)
	}()

	zap.L().Info("Disconnecting from SMSC")

	if transceiver := c.getTransceiver(); transceiver != nil {
		_ = transceiver.Unbind()
		transceiver.Close()
	}
}

func (c *smppClient) getTransceiver() TransceiverWrapper {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transceiver
}

func (c *smppClient) setTransceiver(transceiver TransceiverWrapper) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transceiver = transceiver
}

func (c *smppClient) Connect() error {
	defer func() {
		r := recover()
		if r != nil {
			zap.L().Error("Recovered in Connect", zap.Any("panic", r))
			atomic.StoreInt32(&c.connected, 0)
		}
	}()

	zap.L().Info("Connecting to SMSC", zap.String("host", c.smscIp), zap.Int("port", c.smscPort))

	transceiver, err := c.transceiverFactory.GetTransceiver(
		c.smscIp,
		c.smscPort,
		c.smscEnqLnkIntrvl,
		smpp.Params{
			"system_id": c.smscAccount,
			"password":  c.smscPassword,
		},
	)

	if err == nil {
		c.setTransceiver(transceiver)
		atomic.StoreInt32(&c.connected, 1)
		zap.L().Info("Connection succeeded")
	} else {
		atomic.StoreInt32(&c.connected, 0)
		zap.L().Error("Connection failed", zap.Error(err))
	}

	return err
}

func (c *smppClient) Reconnect() error {
	c.Disconnect()
	return c.Connect()
}

func (c *smppClient) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

func (c *smppClient) SendMessage(ctx context.Context, from, phone, text string) (seq uint32, err error) {
	//impose tps limit
	if err = c.rateLimiter.Wait(ctx); err != nil {
		return 0, err
	}

	defer func() {
		r := recover()
		if r != nil {
			zap.L().Error("Recovered in SendMessage", zap.Any("panic", r))
			atomic.StoreInt32(&c.connected, 0)
			err = NewTransientError(errNotConnected)
		}
	}()

	transceiver := c.getTransceiver()
	if transceiver == nil {
		return 0, NewTransientError(errNotConnected)
	}

	//determine encoding
	msgEncoding := ENCODING_DEFAULT
	textBytes := []byte(text)
	partLength, maxLength := asciiPartLen, maxAsciiLen
	if !util.IsASCII(text) {
		msgEncoding = ENCODING_ISO10646
		textBytes = encodeUcs2(text)
		partLength, maxLength = ucs2PartLen, maxUcs2Len
	}

	if len(textBytes) <= maxLength {
		return transceiver.SubmitSmEncoded(from, phone, textBytes, submitSmParams(msgEncoding, false))
	}

	parts := split(textBytes, partLength)
	if len(parts) > maxParts {
		return 0, fmt.Errorf("message to %s needs %d parts, at most %d allowed", phone, len(parts), maxParts)
	}

	commonId := make([]byte, 1)
	_, _ = rand.Read(commonId)

	for i, part := range parts {
		if i > 0 {
			if err = c.rateLimiter.Wait(ctx); err != nil {
				return 0, err
			}
		}
		//UDH: IEI concatenated 8-bit ref, IE length, ref, total parts, part number
		udh := []byte{0x05, 0x00, 0x03, commonId[0], byte(len(parts)), byte(i + 1)}
		seq, err = transceiver.SubmitSmEncoded(from, phone, append(udh, part...), submitSmParams(msgEncoding, true))
		if err != nil {
			zap.L().Error("Error submitting part", zap.String("phone", phone), zap.Int("part", i+1), zap.Error(err))
			return 0, err
		}
	}

	return seq, nil
}

func submitSmParams(encoding int, multipart bool) *smpp.Params {
	params := smpp.Params{
		smpp.SOURCE_ADDR_TON:     5,
		smpp.SOURCE_ADDR_NPI:     1,
		smpp.DEST_ADDR_TON:       1,
		smpp.DEST_ADDR_NPI:       1,
		smpp.REGISTERED_DELIVERY: 0,
		smpp.DATA_CODING:         encoding,
	}
	if multipart {
		params[smpp.ESM_CLASS] = smpp.ESM_CLASS_GSMFEAT_UDHI
	}
	return &params
}

func split(data []byte, partLength int) [][]byte {
	var parts [][]byte
	for start := 0; start < len(data); start += partLength {
		end := start + partLength
		if end > len(data) {
			end = len(data)
		}
		parts = append(parts, data[start:end])
	}
	return parts
}

func (c *smppClient) ReadPacket() (result *SubmitResult, err error) {
	defer func() {
		r := recover()
		if r != nil {
			atomic.StoreInt32(&c.connected, 0)
			zap.L().Error("Recovered in ReadPacket", zap.Any("panic", r))
			result, err = nil, errNotConnected
		}
	}()

	transceiver := c.getTransceiver()
	if transceiver == nil {
		return nil, errNotConnected
	}

	pdu, err := transceiver.Read() // This is blocking
	if err != nil {
		if _, ok := err.(smpp.SmppErr); ok {
			zap.L().Warn("Error reading packet", zap.Error(err))
		} else {
			//set connected to false
			atomic.StoreInt32(&c.connected, 0)
			zap.L().Error("Error reading packet", zap.Error(err))
		}
		return nil, err
	}

	// Transceiver auto handles EnquireLinks
	switch pdu.GetHeader().Id {
	case smpp.SUBMIT_SM_RESP:
		header := pdu.GetHeader()
		zap.L().Debug("SubmitSmResp", zap.Uint32("seq", header.Sequence), zap.Uint32("status", uint32(header.Status)))
		return &SubmitResult{Seq: header.Sequence, Status: uint32(header.Status)}, nil

	case smpp.DELIVER_SM:
		//receipts are not tracked, just acknowledge them
		err = transceiver.DeliverSmResp(pdu.GetHeader().Sequence, smpp.ESME_ROK)
		if err != nil {
			zap.L().Error("DeliverSmResp err", zap.Error(err))
		}

	default:
		zap.L().Debug("PDU", zap.Any("id", pdu.GetHeader().Id))
	}

	return nil, nil
}

func encodeUcs2(text string) []byte {
	units := utf16.Encode([]rune(text))
	res := make([]byte, 2*len(units))
	for i, u := range units {
		binary.BigEndian.PutUint16(res[2*i:], u)
	}
	return res
}
