package utils

// ToyotaChecksum sums the address bytes, the frame length and every payload
// byte except the last one, which is where the checksum lives.
func ToyotaChecksum(addr uint32, data []byte) byte {
	sum := uint32(len(data)) + (addr & 0xff) + ((addr >> 8) & 0xff)
	for i := 0; i < len(data)-1; i++ {
		sum += uint32(data[i])
	}
	return byte(sum & 0xff)
}

// PedalCRC8 is the comma pedal interceptor CRC (poly 0xD5, init 0xFF),
// computed over data from the last byte to the first.
func PedalCRC8(data []byte) byte {
	crc := byte(0xff)
	const poly = 0xd5
	for i := len(data) - 1; i >= 0; i-- {
		crc ^= data[i]
		for j := 0; j < 8; j++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
