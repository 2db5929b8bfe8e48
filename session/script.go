package session

import (
	"fmt"
	"strconv"
	"strings"

	"partyserver/models"
)

const (
	readyLine    = "Pulsa Jugar cuando estéis listos."
	retryLine    = "Error obteniendo prueba. Reintentando."
	timeUpLine   = "¡Tiempo terminado!"
	noRulesWord  = "Ninguna"
	infiniteWord = "Indefinido"
)

// Script builds the spoken announcement of a round. Empty fragments are
// dropped later by the announcer.
func Script(round *models.Round, numbers []int) []string {
	ch := round.Challenge

	rules := ch.Rules
	if rules == "" {
		rules = noRulesWord
	}
	limit := infiniteWord
	if ch.HasFiniteDuration() {
		limit = fmt.Sprintf("%d segundos", ch.TimeLimit)
	}

	lines := []string{
		fmt.Sprintf("Atención. Jugador que Propone: %s.", round.Victim.Username),
		fmt.Sprintf("Prueba: %s.", ch.Title),
		fmt.Sprintf("Descripción: %s.", ch.Text),
		fmt.Sprintf("Reglas: %s.", rules),
		fmt.Sprintf("Participantes: %d.", ch.Participants),
		fmt.Sprintf("Tiempo límite: %s.", limit),
		"",
		"",
		readyLine,
	}
	if ch.Objects != "" {
		lines[6] = fmt.Sprintf("Objetos: %s.", ch.Objects)
	}
	if len(numbers) > 0 {
		// ランダム指定のお題は選ばれた番号も読み上げる
		parts := make([]string, len(numbers))
		for i, n := range numbers {
			parts[i] = strconv.Itoa(n)
		}
		lines[7] = fmt.Sprintf("Números elegidos: %s.", strings.Join(parts, ", "))
	}
	return lines
}

// apology は抽選失敗時に読み上げる文です。
func apology(username string) []string {
	if username != "" {
		return []string{fmt.Sprintf("No hay pruebas disponibles para %s.", username), "Reintentando."}
	}
	return []string{retryLine}
}
