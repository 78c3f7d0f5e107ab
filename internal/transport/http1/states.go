package http1

type parserState uint8

const (
	eMethod parserState = iota + 1
	eResource
	eProto
	eHeaderKey
	eHeaderValue
	eContentLength
	eTransferEncoding
	eSkipHeaderValue
	eHeadersCR
)

type headerKind uint8

const (
	hUnknown headerKind = iota
	hHost
	hContentType
	hConnection
	hContentLength
	hTransferEncoding
)

type chunkedParserState uint8

const (
	eChunkLength chunkedParserState = iota
	eChunkExt
	eChunkLengthCR
	eChunkBody
	eChunkBodyDone
	eChunkBodyCRLF
	eChunkTrailer
	eChunkTrailerCRLF
	eChunkTrailerFieldLine
)

type multipartState uint8

const (
	eMultipartPreamble multipartState = iota
	eMultipartDelimiterEnd
	eMultipartCloseDash
	eMultipartDelimiterCR
	eMultipartHeaderKey
	eMultipartHeaderValue
	eMultipartSkipHeaderValue
	eMultipartHeadersCR
	eMultipartBody
	eMultipartEpilogue
)
