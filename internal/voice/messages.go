package voice

import (
	"fmt"
	"strings"
)

// User facing texts. The assistant speaks Portuguese.
const (
	msgNoSpeech         = "Não ouvi nada. Tente de novo."
	msgTimeout          = "O pedido demorou demais e foi cancelado."
	msgInterrupted      = "Interrompido."
	msgStopped          = "Parado."
	msgMicDenied        = "Sem acesso ao microfone. Verifique as permissões."
	msgMicFailed        = "Não consegui abrir o microfone."
	msgRecordFailed     = "Falha na gravação."
	msgTranscribeFailed = "Não consegui transcrever o áudio."
	msgAudioFailed      = "Falha ao reproduzir a resposta."
	msgBackendFailed    = "Erro de comunicação com o servidor."
	msgNoSnapshot       = "Nenhum e-mail carregado. Diga atualizar."
	msgNoMore           = "Não há mais e-mails."
	msgNothingToRepeat  = "Nada para repetir."
	msgQueueEmpty       = "A fila está vazia."
	msgQueueCleared     = "Fila limpa."
	msgCancelled        = "Cancelado. Nada foi executado."
	msgNothingToCancel  = "Não há nada para cancelar."
	msgReplyFailed      = "Não consegui redigir uma resposta."
	msgTriageEmpty      = "Nenhum e-mail para analisar."
	msgHelp             = "Você pode dizer: ler e-mail 2, próximo, repetir, apagar e-mail 3, " +
		"marcar 1 como lido, responder e-mail 2, mostrar fila, enviar fila, limpar fila, " +
		"quantos e-mails, listar e-mails, resumo, triagem, atualizar ou parar."
)

func msgNotFound(index int) string {
	if index <= 0 {
		return "Diga o número do e-mail."
	}
	return fmt.Sprintf("E-mail %d não encontrado.", index)
}

func msgPending(n int) string {
	return fmt.Sprintf("%d ação(ões) pendente(s).", n)
}

func msgReadItem(index int, it SnapshotItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "E-mail %d, de %s. Assunto: %s.", index, orUnknown(it.From), orUnknown(it.Subject))
	if s := strings.TrimSpace(it.Snippet); s != "" {
		b.WriteString(" ")
		b.WriteString(s)
	}
	return b.String()
}

func msgQueued(kind ActionKind, index, pending int) string {
	var verb string
	switch kind {
	case ActionDelete:
		verb = "será apagado"
	case ActionMarkRead:
		verb = "será marcado como lido"
	case ActionMarkUnread:
		verb = "será marcado como não lido"
	case ActionSend:
		verb = "tem uma resposta na fila"
	default:
		verb = "foi adicionado"
	}
	return fmt.Sprintf("E-mail %d %s. %s", index, verb, msgPending(pending))
}

func msgConfirm(p *PendingConfirmation) string {
	switch {
	case p.Kind == ConfirmDeleteAll:
		return fmt.Sprintf("Apagar todos os %d e-mails? Diga sim para confirmar.", len(p.Actions))
	case p.RequiresDouble && p.FirstConfirmDone:
		return fmt.Sprintf("São %d exclusões. Confirme mais uma vez para executar.", p.Deletes())
	case p.RequiresDouble:
		return fmt.Sprintf("Isso vai apagar %d e-mails e exige confirmação dupla. Diga sim para continuar.", p.Deletes())
	default:
		return fmt.Sprintf("Executar %d ação(ões), incluindo %d exclusão(ões)? Diga sim para confirmar.", len(p.Actions), p.Deletes())
	}
}

func msgCount(total, unread int) string {
	return fmt.Sprintf("Você tem %d e-mails, %d não lidos.", total, unread)
}

// describeAction names a queued action; label is the subject when the
// message is still in the snapshot, otherwise its key
func describeAction(a ActionRecord, label string) string {
	switch a.Action {
	case ActionDelete:
		return "apagar " + label
	case ActionMarkRead:
		return "marcar " + label + " como lido"
	case ActionMarkUnread:
		return "marcar " + label + " como não lido"
	case ActionSend:
		return "responder " + label
	default:
		return "ignorar " + label
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "desconhecido"
	}
	return s
}
