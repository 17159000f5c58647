package framer

import "github.com/golang/glog"

// Update runs the decoder over the bytes buffered when it is called, one
// step per byte, and stops early once a frame is valid. It never waits
// for more bytes.
func (b *Bank) Update(h Handle) {
	in := b.instance(h)
	for n := in.src.FillCount() - in.readIdx; n > 0 && in.step != StepValidFrame; n-- {
		c, ok := in.src.ByteAt(in.readIdx)
		if !ok {
			return
		}
		b.decode(in, c)
	}
}

func (b *Bank) decode(in *instance, c byte) {
	switch in.step {
	case StepWaitingSOF:
		if c != SyncByte {
			in.src.Discard(1)
			return
		}
		in.step = StepWaitingHeader
		in.readIdx = 1
		in.expectedSize = HeaderSize
	case StepWaitingHeader:
		if in.readIdx < in.expectedSize-1 {
			if in.readIdx == PayloadSizeIndex {
				in.payloadSize = int(c) + 1
			}
			in.readIdx++
			return
		}
		if in.src.Checksum(0, HeaderSize-1, XOR) != c {
			in.wrongHeaderChecksumCount++
			b.sink.WriteCounter(in.link.Counters.WrongHeaderChecksum, in.wrongHeaderChecksumCount)
			glog.Warningf("%s: header checksum mismatch, resync", in.link.Name)
			in.resync()
			return
		}
		// Not a fault counter: the header checked out.
		if in.payloadSize < MinPayloadSize {
			glog.V(2).Infof("%s: payload size %d too small, resync", in.link.Name, in.payloadSize)
			in.resync()
			return
		}
		in.step = StepWaitingData
		in.expectedSize = OverheadSize + in.payloadSize
		in.readIdx++
	case StepWaitingData:
		if in.readIdx < in.expectedSize-1 {
			in.readIdx++
			return
		}
		// The header XORs to zero with its checksum, so the payload alone
		// determines the data checksum.
		if in.src.Checksum(HeaderSize, in.expectedSize-OverheadSize, XOR) != c {
			in.wrongDataChecksumCount++
			b.sink.WriteCounter(in.link.Counters.WrongDataChecksum, in.wrongDataChecksumCount)
			glog.Warningf("%s: data checksum mismatch, resync", in.link.Name)
			in.resync()
			return
		}
		in.step = StepValidFrame
		in.expectedSize = 0
		in.readIdx++
		glog.V(2).Infof("%s: frame of %d bytes", in.link.Name, in.readIdx)
	}
}

// resync drops the sync byte of the rejected frame and restarts the search
// on the following byte.
func (in *instance) resync() {
	in.reset()
	in.src.Discard(1)
}
