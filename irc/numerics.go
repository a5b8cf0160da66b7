package irc

import "fmt"

// Reply is a numeric server reply
type Reply int

func (r Reply) String() string {
	return fmt.Sprintf("%03d", int(r))
}

// Command replies
const (
	RPL_WELCOME  Reply = 1
	RPL_YOURHOST Reply = 2
	RPL_CREATED  Reply = 3
	RPL_MYINFO   Reply = 4
	RPL_BOUNCE   Reply = 5

	RPL_TRACELINK       Reply = 200
	RPL_TRACECONNECTING Reply = 201
	RPL_TRACEHANDSHAKE  Reply = 202
	RPL_TRACEUNKNOWN    Reply = 203
	RPL_TRACEOPERATOR   Reply = 204
	RPL_TRACEUSER       Reply = 205
	RPL_TRACESERVER     Reply = 206
	RPL_TRACESERVICE    Reply = 207
	RPL_TRACENEWTYPE    Reply = 208
	RPL_TRACECLASS      Reply = 209
	RPL_TRACERECONNECT  Reply = 210
	RPL_STATSLINKINFO   Reply = 211
	RPL_STATSCOMMANDS   Reply = 212
	RPL_ENDOFSTATS      Reply = 219
	RPL_UMODEIS         Reply = 221
	RPL_SERVLIST        Reply = 234
	RPL_SERVLISTEND     Reply = 235
	RPL_STATSUPTIME     Reply = 242
	RPL_STATSOLINE      Reply = 243
	RPL_STATSGENERIC    Reply = 244
	RPL_LUSERCLIENT     Reply = 251
	RPL_LUSEROP         Reply = 252
	RPL_LUSERUNKNOWN    Reply = 253
	RPL_LUSERCHANNELS   Reply = 254
	RPL_LUSERME         Reply = 255
	RPL_ADMINME         Reply = 256
	RPL_ADMINLOC1       Reply = 257
	RPL_ADMINLOC2       Reply = 258
	RPL_ADMINEMAIL      Reply = 259
	RPL_TRACELOG        Reply = 261
	RPL_TRACEEND        Reply = 262
	RPL_TRYAGAIN        Reply = 263

	RPL_AWAY            Reply = 301
	RPL_USERHOST        Reply = 302
	RPL_ISON            Reply = 303
	RPL_UNAWAY          Reply = 305
	RPL_NOWAWAY         Reply = 306
	RPL_WHOISUSER       Reply = 311
	RPL_WHOISSERVER     Reply = 312
	RPL_WHOISOPERATOR   Reply = 313
	RPL_WHOWASUSER      Reply = 314
	RPL_ENDOFWHO        Reply = 315
	RPL_WHOISIDLE       Reply = 317
	RPL_ENDOFWHOIS      Reply = 318
	RPL_WHOISCHANNELS   Reply = 319
	RPL_LISTSTART       Reply = 321
	RPL_LIST            Reply = 322
	RPL_LISTEND         Reply = 323
	RPL_CHANNELMODEIS   Reply = 324
	RPL_UNIQOPIS        Reply = 325
	RPL_NOTOPIC         Reply = 331
	RPL_TOPIC           Reply = 332
	RPL_INVITING        Reply = 341
	RPL_SUMMONING       Reply = 342
	RPL_INVITELIST      Reply = 346
	RPL_ENDOFINVITELIST Reply = 347
	RPL_EXCEPTLIST      Reply = 348
	RPL_ENDOFEXCEPTLIST Reply = 349
	RPL_VERSION         Reply = 351
	RPL_WHOREPLY        Reply = 352
	RPL_NAMREPLY        Reply = 353
	RPL_LINKS           Reply = 364
	RPL_ENDOFLINKS      Reply = 365
	RPL_ENDOFNAMES      Reply = 366
	RPL_BANLIST         Reply = 367
	RPL_ENDOFBANLIST    Reply = 368
	RPL_ENDOFWHOWAS     Reply = 369
	RPL_INFO            Reply = 371
	RPL_MOTD            Reply = 372
	RPL_ENDOFINFO       Reply = 374
	RPL_MOTDSTART       Reply = 375
	RPL_ENDOFMOTD       Reply = 376
	RPL_YOUREOPER       Reply = 381
	RPL_REHASHING       Reply = 382
	RPL_YOURESERVICE    Reply = 383
	RPL_TIME            Reply = 391
	RPL_USERSSTART      Reply = 392
	RPL_USERS           Reply = 393
	RPL_ENDOFUSERS      Reply = 394
	RPL_NOUSERS         Reply = 395
)

// Error replies
const (
	ERR_INVALIDINPUT     Reply = 400
	ERR_NOSUCHNICK       Reply = 401
	ERR_NOSUCHCHANNEL    Reply = 403
	ERR_UNKNOWNCOMMAND   Reply = 421
	ERR_ERRONEUSNICKNAME Reply = 432
	ERR_NICKCOLLISION    Reply = 436
	ERR_NOTONCHANNEL     Reply = 442
	ERR_NOTREGISTERED    Reply = 451
	ERR_NEEDMOREPARAMS   Reply = 461
)
