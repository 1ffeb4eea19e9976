package client

import (
	"fmt"
	"strings"
)

// CommandKind identifies a parsed input line.
type CommandKind int

const (
	CmdHelp CommandKind = iota
	CmdInfo
	CmdConnect
	CmdCreateChat
	CmdJoin
	CmdListMembers
	CmdCreateInvite
	CmdKick
	CmdQuit
	CmdUpload
	CmdAdmin
	CmdSendMessage
)

var commandLetters = map[CommandKind]byte{
	CmdHelp:         '?',
	CmdInfo:         'i',
	CmdConnect:      'c',
	CmdCreateChat:   'p',
	CmdJoin:         'j',
	CmdListMembers:  'l',
	CmdCreateInvite: 'n',
	CmdKick:         'k',
	CmdQuit:         'q',
	CmdUpload:       'f',
	CmdAdmin:        'y',
}

// Command is one parsed input line. Args holds the positional arguments;
// Text holds the body of a chat message.
type Command struct {
	Kind CommandKind
	Args []string
	Text string
}

// Ident names the command the way the user typed it, e.g. "/j".
func (c Command) Ident() string {
	if c.Kind == CmdSendMessage {
		return "message"
	}
	return "/" + string(commandLetters[c.Kind])
}

// ParseError is returned for lines that are not a valid command.
type ParseError struct {
	Line  string
	Cmd   byte
	Want  int
	Found int
}

func (e *ParseError) Error() string {
	if e.Cmd == 0 {
		return fmt.Sprintf("Invalid command '%s'. Type '/?' for help", e.Line)
	}
	return fmt.Sprintf("Command /%c expects %d args, found %d", e.Cmd, e.Want, e.Found)
}

// ParseCommand parses a trimmed, non-empty input line. Lines not starting
// with '/' are chat messages.
func ParseCommand(line string) (Command, error) {
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: CmdSendMessage, Text: line}, nil
	}

	fields := strings.Fields(line)
	if len(fields[0]) != 2 {
		return Command{}, &ParseError{Line: line}
	}
	args := fields[1:]
	letter := fields[0][1]

	expect := func(kind CommandKind, n int) (Command, error) {
		if len(args) != n {
			return Command{}, &ParseError{Line: line, Cmd: letter, Want: n, Found: len(args)}
		}
		return Command{Kind: kind, Args: args}, nil
	}

	switch letter {
	case '?':
		return Command{Kind: CmdHelp}, nil
	case 'i':
		return Command{Kind: CmdInfo}, nil
	case 'l':
		return Command{Kind: CmdListMembers}, nil
	case 'q':
		return Command{Kind: CmdQuit}, nil
	case 'c':
		return expect(CmdConnect, 2)
	case 'p':
		return expect(CmdCreateChat, 1)
	case 'j':
		return expect(CmdJoin, 2)
	case 'k':
		return expect(CmdKick, 1)
	case 'f':
		return expect(CmdUpload, 1)
	case 'y':
		return expect(CmdAdmin, 1)
	case 'n':
		return expect(CmdCreateInvite, 0)
	default:
		return Command{}, &ParseError{Line: line}
	}
}

const helpText = `Commands:
  /?                    show this help
  /i                    show client and connection details
  /c <url> <name>       connect to a server as <name>
  /p <title>            create a chat
  /j <title> <invite>   join the chat <title> with an invite
  /l                    list members and open invites of the current chat
  /n                    create an invite for the current chat
  /k <name>             kick a member
  /f <path>             upload a file
  /y <name>             make a member admin
  /q                    leave the chat, disconnect from the server, or exit
Anything else is sent as a message to the current chat.`
