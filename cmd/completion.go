package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_lockkv() {
    local cur prev words cword
    _init_completion || return

    local commands="set get rm clear destroy ls compact diff keyring help completion"
    local common="-dir -db -table -iterations -salt -kdf -cipher -v"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    case "$prev" in
        -dir)
            _filedir -d
            return
            ;;
        -f)
            _filedir
            return
            ;;
        -kdf)
            COMPREPLY=($(compgen -W "pbkdf2 hkdf argon2id" -- "$cur"))
            return
            ;;
        -cipher)
            COMPREPLY=($(compgen -W "aes-gcm chacha20-poly1305" -- "$cur"))
            return
            ;;
    esac

    local cmd="${words[1]}"
    case "$cmd" in
        set)
            COMPREPLY=($(compgen -W "$common -f" -- "$cur"))
            ;;
        clear|destroy)
            COMPREPLY=($(compgen -W "$common -force" -- "$cur"))
            ;;
        diff)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "$common" -- "$cur"))
            else
                _filedir
            fi
            ;;
        get|rm|ls|compact)
            COMPREPLY=($(compgen -W "$common" -- "$cur"))
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save delete status $common" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _lockkv lockkv
`

const zshCompletion = `#compdef lockkv

_lockkv() {
    local -a commands common
    commands=(
        'set:Encrypt and store a value'
        'get:Decrypt and print a value'
        'rm:Remove keys'
        'clear:Remove every entry of the table'
        'destroy:Delete the whole database'
        'ls:List databases in the data directory'
        'compact:Compact a database to reclaim disk space'
        'diff:Compare a stored value with a local file'
        'keyring:Manage the secret in the OS keyring'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )
    common=(
        '-dir[Data directory]:directory:_files -/'
        '-db[Database name]:database:'
        '-table[Table name]:table:'
        '-iterations[Key derivation iterations]:count:'
        '-salt[Hex salt]:salt:'
        '-kdf[Key derivation]:kdf:(pbkdf2 hkdf argon2id)'
        '-cipher[Value cipher]:cipher:(aes-gcm chacha20-poly1305)'
        '-v[Verbose logging]'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'lockkv commands' commands
            ;;
        args)
            case "${words[2]}" in
                set)
                    _arguments $common '-f[Read value from file]:file:_files' '*:key:'
                    ;;
                clear|destroy)
                    _arguments $common '-force[Do not ask for confirmation]'
                    ;;
                diff)
                    _arguments $common '1:key:' '2:file:_files'
                    ;;
                get|rm|ls|compact)
                    _arguments $common '*:key:'
                    ;;
                keyring)
                    _values 'subcommand' save delete status
                    ;;
                help)
                    _describe -t commands 'lockkv commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_lockkv "$@"
`

const fishCompletion = `# lockkv fish completions

set -l commands set get rm clear destroy ls compact diff keyring help completion

complete -c lockkv -f

# Commands
complete -c lockkv -n "not __fish_seen_subcommand_from $commands" -a set -d 'Encrypt and store a value'
complete -c lockkv -n "not __fish_seen_subcommand_from $commands" -a get -d 'Decrypt and print a value'
complete -c lockkv -n "not __fish_seen_subcommand_from $commands" -a rm -d 'Remove keys'
complete -c lockkv -n "not __fish_seen_subcommand_from $commands" -a clear -d 'Remove every entry'
complete -c lockkv -n "not __fish_seen_subcommand_from $commands" -a destroy -d 'Delete the whole database'
complete -c lockkv -n "not __fish_seen_subcommand_from $commands" -a ls -d 'List databases'
complete -c lockkv -n "not __fish_seen_subcommand_from $commands" -a compact -d 'Compact a database'
complete -c lockkv -n "not __fish_seen_subcommand_from $commands" -a diff -d 'Compare value with a file'
complete -c lockkv -n "not __fish_seen_subcommand_from $commands" -a keyring -d 'Manage secret in OS keyring'
complete -c lockkv -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c lockkv -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

# Shared flags
complete -c lockkv -n "__fish_seen_subcommand_from $commands" -o dir -r -a "(__fish_complete_directories)" -d 'Data directory'
complete -c lockkv -n "__fish_seen_subcommand_from $commands" -o db -r -d 'Database name'
complete -c lockkv -n "__fish_seen_subcommand_from $commands" -o table -r -d 'Table name'
complete -c lockkv -n "__fish_seen_subcommand_from $commands" -o iterations -r -d 'Key derivation iterations'
complete -c lockkv -n "__fish_seen_subcommand_from $commands" -o salt -r -d 'Hex salt'
complete -c lockkv -n "__fish_seen_subcommand_from $commands" -o kdf -r -a "pbkdf2 hkdf argon2id" -d 'Key derivation'
complete -c lockkv -n "__fish_seen_subcommand_from $commands" -o cipher -r -a "aes-gcm chacha20-poly1305" -d 'Value cipher'
complete -c lockkv -n "__fish_seen_subcommand_from $commands" -o v -d 'Verbose logging'

# Command flags
complete -c lockkv -n "__fish_seen_subcommand_from set" -s f -r -F -d 'Read value from file'
complete -c lockkv -n "__fish_seen_subcommand_from clear destroy" -o force -d 'Do not ask for confirmation'
complete -c lockkv -n "__fish_seen_subcommand_from diff" -F

# keyring subcommands
complete -c lockkv -n "__fish_seen_subcommand_from keyring" -a "save delete status"

# help completions
complete -c lockkv -n "__fish_seen_subcommand_from help" -a "$commands"

# completion completions
complete -c lockkv -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
